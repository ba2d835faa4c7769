package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"

	"github.com/xef5000/UltimateLogger/logstore"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type submitRequest struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

type submitResponse struct {
	Queued bool `json:"queued"`
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if req.Type == "" {
		return ErrMissingType
	}

	payload := logstore.NewPayload()
	if len(req.Data) > 0 {
		decoded, err := logstore.DecodePayload(req.Data)
		if err != nil {
			return err
		}
		payload = decoded
	}

	if _, queued := s.engine.Submit(req.Type, payload); !queued {
		return c.JSON(http.StatusOK, submitResponse{Queued: false})
	}

	return c.JSON(http.StatusAccepted, submitResponse{Queued: true})
}

func (s *Server) handleListPage(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}

	size, err := queryInt(c, "size", defaultPageSize)
	if err != nil {
		return err
	}
	if size > maxPageSize {
		return errors.Join(logstore.ErrInvalidPage, errors.New("page size must not exceed "+strconv.Itoa(maxPageSize)))
	}

	filter, err := logstore.Deserialize(c.QueryParam("filter"))
	if err != nil {
		return err
	}

	records, err := s.engine.GetPage(c.Request().Context(), page, size, filter)
	if err != nil {
		return err
	}

	if records == nil {
		records = []logstore.Record{}
	}

	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleGet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	record, err := s.engine.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleDelete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	deleted, err := s.engine.DeleteByID(c.Request().Context(), id)
	if err != nil {
		return err
	}

	if !deleted {
		return logstore.ErrRecordNotFound
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleArchive(c echo.Context) error {
	return s.setArchived(c, true)
}

func (s *Server) handleUnarchive(c echo.Context) error {
	return s.setArchived(c, false)
}

func (s *Server) setArchived(c echo.Context, archived bool) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	updated, err := s.engine.SetArchived(c.Request().Context(), id, archived)
	if err != nil {
		return err
	}

	if !updated {
		return logstore.ErrRecordNotFound
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClear(c echo.Context) error {
	filter, err := logstore.Deserialize(c.QueryParam("filter"))
	if err != nil {
		return err
	}

	deleted, err := s.engine.ClearMatching(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, deletedResponse{Deleted: deleted})
}

func (s *Server) handleCleanup(c echo.Context) error {
	deleted, err := s.engine.CleanupExpired(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, deletedResponse{Deleted: deleted})
}

func (s *Server) handleListTypes(c echo.Context) error {
	types, err := s.engine.ListKnownTypes(c.Request().Context())
	if err != nil {
		return err
	}

	if types == nil {
		types = []string{}
	}

	return c.JSON(http.StatusOK, types)
}

func (s *Server) handleParameters(c echo.Context) error {
	parameters, ok := s.engine.FilterableParameters(c.Param("type"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no definition registered for log type "+c.Param("type"))
	}

	if parameters == nil {
		parameters = []logstore.Parameter{}
	}

	return c.JSON(http.StatusOK, parameters)
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Stats())
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, ErrInvalidID
	}

	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(logstore.ErrInvalidPage, err)
	}

	return value, nil
}
