package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/trace"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Message("Server online").Write(w)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Status(http.StatusNotFound).Error("Resource not found.").Write(w)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	userID, err := s.deps.Auth.Bearer(ctx, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := s.parser.ParseReportRequest(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := s.deps.Reports.Generate(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Rotation and clearing skip the document until it has been streamed.
	defer s.deps.Reports.Release(doc)
	if err := serveDocument(w, doc); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to stream report",
			log.NewFields().
				WithOperation("serve_report").
				WithReport(req.UserID, req.LedgerID, req.Period.String()).
				WithError(err, core.Kind(err)).
				ToSlice()...)
	}
}

// serveDocument streams a stored report inline. Failures before the first
// byte is written still produce a JSON error.
func serveDocument(w http.ResponseWriter, doc core.ReportDocument) error {
	f, err := os.Open(doc.Path)
	if err != nil {
		NewJSONResponse().Status(http.StatusInternalServerError).Error(msgInternal).Write(w)
		return fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=report%s", filepath.Ext(doc.Path)))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("stream report: %w", err)
	}
	return nil
}

func (s *Server) handleAutomatedReport(w http.ResponseWriter, r *http.Request) {
	period, err := s.parser.ParsePeriodQuery(r, core.NewPeriod(s.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		s.publishRun(w, r, period)
		return
	}

	// The batch outlives a client that hangs up.
	ctx := context.WithoutCancel(r.Context())
	summary, err := s.deps.Batch.Run(ctx, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(summary).Write(w)
}

func (s *Server) publishRun(w http.ResponseWriter, r *http.Request, period core.Period) {
	if s.deps.Publisher == nil {
		writeError(w, r, newRequestError("asynchronous runs are not configured"))
		return
	}
	msg := amqp.NewReportRunMessage(period)
	msg.RequestedAt = s.now()
	msg.RequestID = trace.GetRequestID(r.Context())
	if err := s.deps.Publisher.PublishReportRun(r.Context(), msg); err != nil {
		writeError(w, r, fmt.Errorf("queue report run: %w", err))
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Queued report run",
		log.FieldOperation, "publish_report_run",
		log.FieldMessageID, msg.ID,
		log.FieldPeriod, period.String())
	NewJSONResponse().
		Status(http.StatusAccepted).
		Data(map[string]string{"id": msg.ID, "period": period.String()}).
		Write(w)
}

func (s *Server) handleClearStorage(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Storage.Clear(r.Context()); err != nil {
		writeError(w, r, fmt.Errorf("clear storage: %w", err))
		return
	}
	NewJSONResponse().Message("Cleared the storage for any documents").Write(w)
}

func (s *Server) handleAllowReportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Users.GetAllowReportUsers(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("list users: %w", err))
		return
	}
	uids := make([]string, 0, len(users))
	for _, u := range users {
		uids = append(uids, u.ID)
	}
	NewJSONResponse().Raw(map[string]any{"count": len(uids), "uids": uids}).Write(w)
}
