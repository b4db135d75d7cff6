package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rcliao/guardia-ai/internal/app"
	"github.com/rcliao/guardia-ai/internal/model"
	"github.com/rcliao/guardia-ai/internal/nav"
	"github.com/rcliao/guardia-ai/internal/session"
	"github.com/rcliao/guardia-ai/internal/store"
)

type viewBody struct {
	View         nav.View     `json:"view"`
	Allowed      []nav.Action `json:"allowed"`
	PendingCount int          `json:"pendingCount"`
}

type sessionBody struct {
	View    nav.View      `json:"view"`
	Session session.State `json:"session"`
}

func (s *Server) view() viewBody {
	v := s.app.View()
	allowed := nav.Allowed(v)
	slices.Sort(allowed)
	return viewBody{View: v, Allowed: allowed, PendingCount: s.app.PendingCount()}
}

func (s *Server) sessionState(c echo.Context, code int) error {
	return c.JSON(code, sessionBody{View: s.app.View(), Session: s.app.Session().Snapshot()})
}

func attachment(c echo.Context, name string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
}

func (s *Server) getView(c echo.Context) error {
	return c.JSON(http.StatusOK, s.view())
}

func (s *Server) postNav(c echo.Context) error {
	var err error
	switch nav.Action(c.Param("action")) {
	case nav.NewPatient:
		s.app.NewPatient()
	case nav.Home:
		s.app.Home()
	case nav.OpenPending:
		_, err = s.app.OpenPending()
	case nav.OpenSeen:
		_, err = s.app.OpenSeen()
	case nav.Back:
		_, err = s.app.Back()
	case nav.OpenNote:
		_, err = s.app.OpenNote()
	case nav.StartChat:
		_, err = s.app.StartChat()
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported navigation action "+c.Param("action"))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.view())
}

func (s *Server) listRecords(c echo.Context) error {
	p := store.SearchParams{
		Query:  c.QueryParam("q"),
		Status: model.Status(c.QueryParam("status")),
	}
	if p.Status != "" && !model.ValidStatuses[p.Status] {
		return &model.ValidationError{Reason: "unknown status " + string(p.Status)}
	}
	if l := c.QueryParam("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return &model.ValidationError{Reason: "limit must be a non-negative integer"}
		}
		p.Limit = n
	}
	records := slices.Collect(s.app.Store().Search(p))
	if records == nil {
		records = []model.PatientRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) getRecord(c echo.Context) error {
	rec, ok := s.app.Store().Get(c.Param("id"))
	if !ok {
		return app.ErrNotFound
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) selectRecord(c echo.Context) error {
	if _, err := s.app.Select(c.Param("id")); err != nil {
		return err
	}
	return s.sessionState(c, http.StatusOK)
}

func (s *Server) getStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.app.Store().Stats())
}

func (s *Server) requestDelete(c echo.Context) error {
	req, err := s.app.RequestDelete(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, req)
}

func (s *Server) requestDeleteCurrent(c echo.Context) error {
	req, err := s.app.RequestDeleteCurrent()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, req)
}

func (s *Server) getPendingDelete(c echo.Context) error {
	req, ok := s.app.PendingDelete()
	if !ok {
		return app.ErrNoConfirmation
	}
	return c.JSON(http.StatusOK, req)
}

func (s *Server) confirmDelete(c echo.Context) error {
	req, err := s.app.ConfirmDelete(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"deleted": req, "view": s.app.View()})
}

func (s *Server) cancelDelete(c echo.Context) error {
	s.app.CancelDelete()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getBackup(c echo.Context) error {
	var buf bytes.Buffer
	name, err := s.app.ExportBackup(&buf)
	if err != nil {
		return err
	}
	attachment(c, name)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, buf.Bytes())
}

// prepareImport accepts the backup as the raw body or as a multipart
// "file" field.
func (s *Server) prepareImport(c echo.Context) error {
	var r io.Reader = c.Request().Body
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return &model.ImportFormatError{Err: err}
		}
		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	plan, err := s.app.PrepareImport(r)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) confirmImport(c echo.Context) error {
	res, err := s.app.ConfirmImport(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) cancelImport(c echo.Context) error {
	s.app.CancelImport()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getSession(c echo.Context) error {
	return s.sessionState(c, http.StatusOK)
}

func (s *Server) newPatient(c echo.Context) error {
	s.app.NewPatient()
	return s.sessionState(c, http.StatusOK)
}

// patchFields applies {"field": "value", ...}. All names are checked before
// any is applied.
func (s *Server) patchFields(c echo.Context) error {
	var fields map[string]string
	if err := json.NewDecoder(c.Request().Body).Decode(&fields); err != nil {
		return &model.ValidationError{Reason: "body must be an object of field names to text"}
	}
	valid := model.EditableFields()
	for name := range fields {
		if _, found := slices.BinarySearch(valid, name); !found {
			return &model.ValidationError{Reason: "unknown field " + strconv.Quote(name)}
		}
	}
	for name, value := range fields {
		if err := s.app.Session().Edit(name, value); err != nil {
			return err
		}
	}
	return s.sessionState(c, http.StatusOK)
}

type itemsBody struct {
	Items []string `json:"items"`
}

func (s *Server) putPendingItems(c echo.Context) error {
	var body itemsBody
	if err := c.Bind(&body); err != nil {
		return &model.ValidationError{Reason: "body must be {\"items\": [...]}"}
	}
	s.app.Session().SetPendingItems(body.Items)
	return s.sessionState(c, http.StatusOK)
}

type textBody struct {
	Item string `json:"item,omitempty"`
	Text string `json:"text,omitempty"`
}

func (s *Server) togglePendingItem(c echo.Context) error {
	var body textBody
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Item) == "" {
		return &model.ValidationError{Reason: "body must be {\"item\": \"...\"}"}
	}
	s.app.Session().TogglePendingItem(body.Item)
	return s.sessionState(c, http.StatusOK)
}

func (s *Server) savePending(c echo.Context) error {
	rec, err := s.app.SavePending(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) finishCase(c echo.Context) error {
	rec, err := s.app.FinishCase(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) submitAnalysis(c echo.Context) error {
	call, err := s.app.SubmitAnalysis()
	if err != nil {
		return err
	}
	s.app.Go(s.bg, call)
	return s.sessionState(c, http.StatusAccepted)
}

func (s *Server) generateNote(c echo.Context) error {
	call, err := s.app.GenerateNote()
	if err != nil {
		return err
	}
	s.app.Go(s.bg, call)
	return s.sessionState(c, http.StatusAccepted)
}

func (s *Server) putNote(c echo.Context) error {
	var body textBody
	if err := c.Bind(&body); err != nil {
		return &model.ValidationError{Reason: "body must be {\"text\": \"...\"}"}
	}
	if err := s.app.Session().EditNote(c.Request().Context(), body.Text); err != nil {
		return err
	}
	return s.sessionState(c, http.StatusOK)
}

func (s *Server) exportNote(c echo.Context) error {
	var buf bytes.Buffer
	name, err := s.app.ExportNote(c.Request().Context(), &buf)
	if err != nil {
		return err
	}
	attachment(c, name)
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, buf.Bytes())
}

func (s *Server) startChat(c echo.Context) error {
	if _, err := s.app.StartChat(); err != nil {
		return err
	}
	return s.sessionState(c, http.StatusOK)
}

func (s *Server) sendChat(c echo.Context) error {
	var body textBody
	if err := c.Bind(&body); err != nil {
		return &model.ValidationError{Reason: "body must be {\"text\": \"...\"}"}
	}
	call, err := s.app.Session().StartSend(body.Text)
	if err != nil {
		return err
	}
	s.app.Go(s.bg, call)
	return s.sessionState(c, http.StatusAccepted)
}
