package httpserver

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/webdav"

	"dirdrop/internal/config"
	"dirdrop/internal/fsutil"
	"dirdrop/internal/listing"
	"dirdrop/internal/metrics"
	"dirdrop/internal/page"
	"dirdrop/internal/upload"
)

// WebDAV verbs chi does not know about.
var davMethods = []string{"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK"}

func init() {
	for _, m := range davMethods {
		chi.RegisterMethod(m)
	}
}

type Options struct {
	Config config.Config
	Logger *slog.Logger
	// FS defaults to the host filesystem.
	FS fsutil.FS
	// Registry receives the server's collectors. Default: a private registry.
	Registry *prometheus.Registry
}

type Server struct {
	cfg     config.Config
	root    string
	fs      fsutil.FS
	log     *slog.Logger
	parser  *upload.Parser
	pages   *page.Builder
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func New(opts Options) (*Server, error) {
	cfg := opts.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("abs root: %w", err)
	}
	pages, err := page.NewBuilder(cfg.Charset)
	if err != nil {
		return nil, err
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = fsutil.OS{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		cfg:  cfg,
		root: root,
		fs:   fsys,
		log:  log,
		parser: upload.NewParser(upload.Options{
			FS:         fsys,
			SafeNames:  cfg.SafeFilenames(),
			BufferSize: cfg.ReadBuffer,
		}),
		pages:   pages,
		metrics: metrics.New(reg),
		reg:     reg,
	}, nil
}

// Root is the absolute directory being served.
func (s *Server) Root() string { return s.root }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})

	if s.cfg.Metrics {
		r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	}

	if s.cfg.WebDAV {
		dav := &webdav.Handler{
			Prefix:     "/dav",
			FileSystem: webdav.Dir(s.root),
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					s.log.Warn("webdav", "method", r.Method, "path", r.URL.Path, "err", err)
				}
			},
		}
		r.Handle("/dav", dav)
		r.Handle("/dav/*", dav)
	}

	r.Get("/*", s.handleGet)
	r.Head("/*", s.handleGet)
	r.Post("/*", s.handleUpload)
	return r
}

func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// --- handlers ---

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	abs, err := fsutil.JoinWithinRoot(s.root, r.URL.Path)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	st, err := s.fs.Stat(abs)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !st.IsDir() {
		s.serveFile(w, r, abs)
		return
	}
	if !strings.HasSuffix(r.URL.Path, "/") {
		target := r.URL.EscapedPath() + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}
	for _, index := range []string{"index.html", "index.htm"} {
		p := filepath.Join(abs, index)
		if st, err := s.fs.Stat(p); err == nil && st.Mode().IsRegular() {
			s.serveFile(w, r, p)
			return
		}
	}
	s.serveListing(w, r, abs)
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, dir string) {
	pg, err := listing.Render(r.Context(), s.fs, dir, r.URL.Path)
	if err != nil {
		s.metrics.ObserveListing("not_readable")
		s.log.Warn("listing failed", "path", r.URL.Path, "client", r.RemoteAddr, "err", err)
		http.Error(w, "No permission to list directory", http.StatusNotFound)
		return
	}
	s.metrics.ObserveListing("ok")
	s.writePage(w, pg.Body, pg.Title)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, abs string) {
	f, err := s.fs.Open(abs)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		http.Error(w, "stat failed", http.StatusInternalServerError)
		return
	}
	if ct := contentTypeForName(st.Name()); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}

// handleUpload always answers 200 with a result page; failures are described
// in the body.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	dir, err := fsutil.JoinWithinRoot(s.root, r.URL.Path)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}

	out := s.parser.ParseRequest(r.Context(), r.Header, r.ContentLength, r.Body, dir)
	s.logUpload(r, out)

	kind := ""
	if !out.OK {
		kind = out.Kind().String()
	}
	s.metrics.ObserveUpload(out.Result(), kind, out.Bytes)

	back := r.Header.Get("Referer")
	if back == "" {
		back = r.URL.Path
	}
	s.writePage(w, page.UploadResult(out.Result(), out.Message(), back), page.UploadResultTitle)
}

func (s *Server) logUpload(r *http.Request, out upload.Outcome) {
	attrs := []any{
		"result", out.Result(),
		"info", out.Message(),
		"client", r.RemoteAddr,
		"upload_id", uuid.NewString(),
	}
	if out.OK {
		attrs = append(attrs, "bytes", out.Bytes, "blake3", out.BLAKE3)
		s.log.Info("upload", attrs...)
		return
	}
	attrs = append(attrs, "kind", out.Kind().String())
	if out.Err != nil && out.Err.Err != nil {
		attrs = append(attrs, "err", out.Err.Err)
	}
	s.log.Warn("upload", attrs...)
}

// --- helpers ---

func (s *Server) writePage(w http.ResponseWriter, fragment []byte, title string) {
	h, body := s.pages.Build(fragment, title)
	for k, v := range h {
		w.Header()[k] = v
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	// Fallbacks for systems with sparse mime tables.
	switch ext {
	case ".webp":
		return "image/webp"
	case ".mkv":
		return "video/x-matroska"
	case ".flac":
		return "audio/flac"
	case ".md", ".log", ".yaml", ".yml", ".toml", ".ini", ".conf", ".go", ".py", ".rs", ".sh":
		return "text/plain; charset=utf-8"
	case ".tar":
		return "application/x-tar"
	case ".gz":
		return "application/gzip"
	default:
		return ""
	}
}
