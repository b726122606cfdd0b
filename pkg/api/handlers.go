package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethpandaops/reportoor/pkg/artifact"
	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/detail"
	"github.com/ethpandaops/reportoor/pkg/handoff"
	"github.com/ethpandaops/reportoor/pkg/query"
	"github.com/ethpandaops/reportoor/pkg/render"
	"github.com/ethpandaops/reportoor/pkg/report"
	"github.com/ethpandaops/reportoor/pkg/reproducer"
	"github.com/ethpandaops/reportoor/pkg/schema"
	"github.com/ethpandaops/reportoor/pkg/stats"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 1000
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// --- Report handlers ---

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReport returns the run metadata and the page list.
func (s *server) handleReport(w http.ResponseWriter, _ *http.Request) {
	desc := s.report.Descriptor()

	writeJSON(w, http.StatusOK, map[string]any{
		"notes":      desc.Notes,
		"cpu_count":  desc.EffectiveCPUCount(),
		"start_time": desc.Start(),
		"location":   s.report.Store().Location(),
		"pages":      report.Pages(),
	})
}

// handleColumns returns the grid columns and their initial ordering.
func (s *server) handleColumns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"columns": s.report.Columns(),
		"order":   s.report.Order(),
	})
}

type rowResponse struct {
	Display map[string]any  `json:"display"`
	Raw     map[string]any  `json:"raw"`
	Actions []schema.Action `json:"actions"`
}

type rowsResponse struct {
	Page     report.Page       `json:"page"`
	Token    string            `json:"token"`
	State    query.SearchState `json:"state"`
	Total    int               `json:"total"`
	Filtered int               `json:"filtered"`
	Offset   int               `json:"offset"`
	Rows     []rowResponse     `json:"rows"`
}

// handleRows runs a search on a page and returns one window of its rows.
// The token restores a previous state; q, when present, is entered in mode.
func (s *server) handleRows(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	req := report.SearchRequest{
		Page:  chi.URLParam(r, "page"),
		Token: params.Get("token"),
	}

	if params.Has("q") {
		q := params.Get("q")
		req.Query = &q

		mode, err := query.ParseMode(params.Get("mode"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

			return
		}

		req.Mode = mode
	}

	offset, err := intParam(params.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"offset must be a non-negative integer"})

		return
	}

	limit, err := intParam(params.Get("limit"), defaultPageLimit)
	if err != nil || limit <= 0 || limit > maxPageLimit {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"limit must be between 1 and 1000"})

		return
	}

	res, err := s.report.Search(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrUnknownPage):
			writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})
		case errors.Is(err, query.ErrInvalidToken):
			writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		default:
			s.log.WithError(err).Error("Search failed")
			writeJSON(w, http.StatusInternalServerError,
				errorResponse{"search failed"})
		}

		return
	}

	desc := s.report.Descriptor()
	columns := res.Grid.Columns()
	page := res.Grid.Page(offset, limit)

	rows := make([]rowResponse, 0, len(page))

	for _, row := range page {
		rec, err := dataset.DecodeRecord(row)
		if err != nil {
			s.log.WithError(err).Error("Decoding record failed")
			writeJSON(w, http.StatusInternalServerError,
				errorResponse{"decoding record failed"})

			return
		}

		out := rowResponse{
			Display: make(map[string]any, len(columns)),
			Raw:     make(map[string]any, len(columns)),
			Actions: schema.Actions(desc, rec, false),
		}

		for _, col := range columns {
			if !col.DataBacked() {
				continue
			}

			out.Display[col.Name] = col.Value(row, render.Display)
			out.Raw[col.Name] = col.Value(row, render.Raw)
		}

		rows = append(rows, out)
	}

	writeJSON(w, http.StatusOK, rowsResponse{
		Page:     res.Page,
		Token:    res.Token,
		State:    res.State,
		Total:    res.Grid.Total(),
		Filtered: res.Grid.Filtered(),
		Offset:   offset,
		Rows:     rows,
	})
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}

	return strconv.Atoi(value)
}

// --- Statistics handlers ---

// handleStats returns the overall summary of the run.
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.report.Stats(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Computing statistics failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"computing statistics failed"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   summary,
		"wall_time": summary.WallTime(),
		"text":      summary.Text(),
		"chart":     summary.Chart(),
	})
}

// handleStatsChart renders the status pie chart as SVG.
func (s *server) handleStatsChart(w http.ResponseWriter, r *http.Request) {
	summary, err := s.report.Stats(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Computing statistics failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"computing statistics failed"})

		return
	}

	s.writeChart(w, r, summary.Chart())
}

// handleCategory returns the crash component breakdown of a category.
func (s *server) handleCategory(w http.ResponseWriter, r *http.Request) {
	breakdown, ok := s.breakdown(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"breakdown": breakdown,
		"text":      breakdown.Text(),
		"chart":     breakdown.Chart(),
	})
}

// handleCategoryChart renders the component pie chart of a category as SVG.
func (s *server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	breakdown, ok := s.breakdown(w, r)
	if !ok {
		return
	}

	s.writeChart(w, r, breakdown.Chart())
}

func (s *server) breakdown(
	w http.ResponseWriter,
	r *http.Request,
) (*stats.Breakdown, bool) {
	category := strings.ToUpper(chi.URLParam(r, "category"))

	breakdown, err := s.report.Categories(r.Context(), category)
	if err != nil {
		s.log.WithError(err).WithField("category", category).
			Error("Computing category breakdown failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"computing category breakdown failed"})

		return nil, false
	}

	return breakdown, true
}

// writeChart renders chart into a buffer so that a rendering failure can
// still produce a JSON error.
func (s *server) writeChart(w http.ResponseWriter, r *http.Request, chart stats.PieChart) {
	width, _ := intParam(r.URL.Query().Get("width"), 0)
	height, _ := intParam(r.URL.Query().Get("height"), 0)

	var buf bytes.Buffer
	if err := chart.RenderSVG(&buf, width, height); err != nil {
		if errors.Is(err, stats.ErrNoData) {
			writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})

			return
		}

		s.log.WithError(err).Error("Rendering chart failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"rendering chart failed"})

		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// --- Record handlers ---

// recordName reads the required name query parameter.
func recordName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"name is required"})

		return "", false
	}

	return name, true
}

// handleRecord returns the detail view of a record.
func (s *server) handleRecord(w http.ResponseWriter, r *http.Request) {
	name, ok := recordName(w, r)
	if !ok {
		return
	}

	view, err := s.report.Detail(r.Context(), name)
	if err != nil {
		if errors.Is(err, detail.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})

			return
		}

		s.log.WithError(err).WithField("name", name).
			Error("Composing detail view failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"composing detail view failed"})

		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleReproducer streams the reproducer archive of a record.
func (s *server) handleReproducer(w http.ResponseWriter, r *http.Request) {
	name, ok := recordName(w, r)
	if !ok {
		return
	}

	archive, err := s.report.Reproducer(r.Context(), name)
	if err != nil {
		s.log.WithError(err).WithField("name", name).
			Error("Building reproducer failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"building reproducer failed"})

		return
	}

	if archive == nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"reproducer not available"})

		return
	}

	w.Header().Set("Content-Type", "application/x-tar")
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+reproducer.FileName(name)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// handleTrace returns the viewer message carrying the trace of a record.
func (s *server) handleTrace(w http.ResponseWriter, r *http.Request) {
	name, ok := recordName(w, r)
	if !ok {
		return
	}

	payload, err := s.report.Trace(r.Context(), name)
	if err != nil {
		s.log.WithError(err).WithField("name", name).
			Error("Fetching trace failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"fetching trace failed"})

		return
	}

	if payload == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"trace not found"})

		return
	}

	writeJSON(w, http.StatusOK, handoff.Message{Perfetto: *payload})
}

// handleHandoff upgrades to a websocket acting as the viewer window and
// runs the trace handoff over it.
func (s *server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	name, ok := recordName(w, r)
	if !ok {
		return
	}

	var win *handoff.SocketWindow

	opener := handoff.OpenerFunc(func(_ context.Context) (handoff.Window, error) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already written the HTTP error.
			return nil, err
		}

		win = handoff.NewSocketWindow(conn)

		return win, nil
	})

	state := s.report.Handoff(r.Context(), name, opener, handoff.Options{
		Interval: s.handoffInterval,
		Timeout:  s.handoffTimeout,
	})

	if win != nil {
		_ = win.Close()
	}

	s.log.WithField("name", name).WithField("state", state.String()).
		Debug("Trace handoff finished")
}

// --- File handlers ---

// handleFileRequest serves run artifacts. A trailing slash lists a
// directory. With redirect=true an S3 backend answers with a presigned URL
// instead of proxying the object.
func (s *server) handleFileRequest(w http.ResponseWriter, r *http.Request) {
	filePath := chi.URLParam(r, "*")

	if dir, isDir := strings.CutSuffix(filePath, "/"); isDir {
		s.handleListing(w, r, dir)

		return
	}

	if !artifact.IsAllowedPath(filePath) {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid path"})

		return
	}

	store := s.report.Store()

	if r.URL.Query().Get("redirect") == "true" {
		if presigner, ok := store.(artifact.Presigner); ok {
			url, err := presigner.PresignURL(r.Context(), filePath)
			if err != nil {
				s.log.WithError(err).WithField("path", filePath).
					Error("Presigning URL failed")
				writeJSON(w, http.StatusInternalServerError,
					errorResponse{"presigning URL failed"})

				return
			}

			http.Redirect(w, r, url, http.StatusFound)

			return
		}
	}

	data, err := store.Get(r.Context(), filePath)
	if err != nil {
		s.log.WithError(err).WithField("path", filePath).
			Error("Reading file failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"reading file failed"})

		return
	}

	if data == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"file not found"})

		return
	}

	w.Header().Set("Content-Type", artifact.ContentType(filePath))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	_, _ = w.Write(data)
}

func (s *server) handleListing(w http.ResponseWriter, r *http.Request, dir string) {
	if dir != "" && !artifact.IsAllowedPath(dir) {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid path"})

		return
	}

	entries, err := s.report.Store().List(r.Context(), dir)
	if err != nil {
		s.log.WithError(err).WithField("path", dir).
			Error("Listing directory failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing directory failed"})

		return
	}

	if entries == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"directory not found"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":    dir,
		"entries": entries,
	})
}
