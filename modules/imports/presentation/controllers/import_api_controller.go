package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/presentation/mappers"
	"github.com/iota-uz/iota-import/modules/imports/presentation/viewmodels"
	"github.com/iota-uz/iota-import/modules/imports/services"
	"github.com/iota-uz/iota-import/pkg/application"
	"github.com/iota-uz/iota-import/pkg/composables"
	"github.com/iota-uz/iota-import/pkg/httpapi"
	"github.com/iota-uz/iota-import/pkg/middleware"
)

const multipartMemory = 32 << 20

type ImportAPIController struct {
	imports   *services.ImportService
	apiPrefix string
	maxBytes  int64
}

func NewImportAPIController(app application.Application, maxBytes int64) application.Controller {
	return &ImportAPIController{
		imports:   app.Service(services.ImportService{}).(*services.ImportService),
		apiPrefix: "/api/imports",
		maxBytes:  maxBytes,
	}
}

func (c *ImportAPIController) Key() string {
	return c.apiPrefix
}

func (c *ImportAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(middleware.RequireTenant())

	api.HandleFunc("", c.Run).Methods(http.MethodPost)
	api.HandleFunc("/schemas", c.Schemas).Methods(http.MethodGet)
	api.HandleFunc("/suggest", c.Suggest).Methods(http.MethodPost)
	api.HandleFunc("/batches", c.ListBatches).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}", c.GetBatch).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}/progress", c.Progress).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}/errors", c.GetErrors).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}/errors.csv", c.ExportErrorsCSV).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}/errors.xlsx", c.ExportErrorsXLSX).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}/undo", c.Undo).Methods(http.MethodPost)
}

type uploadRequest struct {
	EntityType string
	Format     string
	FileName   string
	Data       []byte
	Mapping    []viewmodels.ColumnMapping
	Pairs      []string
	Suggest    bool
}

// readUpload accepts a multipart form with a "file" part, or the raw file as the request body
// with its parameters in the query string.
func (c *ImportAPIController) readUpload(r *http.Request) (*uploadRequest, error) {
	if c.maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, c.maxBytes+multipartMemory)
	}
	q := r.URL.Query()
	req := &uploadRequest{
		EntityType: q.Get("entity_type"),
		Format:     q.Get("format"),
		FileName:   q.Get("file_name"),
		Pairs:      q["map"],
		Suggest:    q.Get("suggest") == "true",
	}
	if raw := q.Get("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Mapping); err != nil {
			return nil, &importerrs.ValidationError{Field: "mapping", Reason: "mapping must be a JSON array"}
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, uploadError(err, "request body could not be read")
		}
		req.Data = data
		return req, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, uploadError(err, "invalid multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &importerrs.ValidationError{Field: "file", Reason: "file is required"}
	}
	defer func() { _ = file.Close() }()
	if req.Data, err = io.ReadAll(file); err != nil {
		return nil, uploadError(err, "file could not be read")
	}
	if v := r.FormValue("entity_type"); v != "" {
		req.EntityType = v
	}
	if v := r.FormValue("format"); v != "" {
		req.Format = v
	}
	if req.FileName == "" {
		req.FileName = filepath.Base(header.Filename)
	}
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Mapping); err != nil {
			return nil, &importerrs.ValidationError{Field: "mapping", Reason: "mapping must be a JSON array"}
		}
	}
	req.Pairs = append(req.Pairs, r.MultipartForm.Value["map"]...)
	if r.FormValue("suggest") == "true" {
		req.Suggest = true
	}
	return req, nil
}

// uploadError keeps the size-limit error recognisable and reports anything else as invalid input.
func uploadError(err error, reason string) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return &importerrs.ValidationError{Field: "file", Reason: reason}
}

func (c *ImportAPIController) Run(w http.ResponseWriter, r *http.Request) {
	req, err := c.readUpload(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Format == "" {
		req.Format = "csv"
	}
	if req.FileName == "" {
		req.FileName = "upload." + req.Format
	}

	mapping := mappers.ColumnMappingsFromViewModel(req.Mapping)
	if len(req.Pairs) > 0 {
		pairs, err := services.ParseMappingPairs(req.Pairs)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		mapping = append(mapping, pairs...)
	}
	if len(mapping) == 0 && req.Suggest {
		if mapping, err = c.imports.SuggestMappingForFile(req.EntityType, req.Format, req.Data); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	res, err := c.imports.RunImport(r.Context(), services.RunImportDTO{
		EntityType: req.EntityType,
		FileName:   req.FileName,
		Format:     req.Format,
		Data:       req.Data,
		Mapping:    mapping,
	})
	if err != nil {
		var parseErr *importerrs.ParseError
		if errors.As(err, &parseErr) && res != nil {
			writeJSON(w, http.StatusUnprocessableEntity, struct {
				httpapi.ErrorEnvelope
				Batch *viewmodels.RunResult `json:"batch"`
			}{
				ErrorEnvelope: httpapi.ErrorEnvelope{Code: "IMPORT_PARSE_FAILED", Message: parseErr.Error()},
				Batch:         mappers.RunResultToViewModel(res),
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.RunResultToViewModel(res))
}

func (c *ImportAPIController) Schemas(w http.ResponseWriter, r *http.Request) {
	schemas := c.imports.Schemas()
	out := make([]*viewmodels.Schema, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, mappers.SchemaToViewModel(s))
	}
	writeJSON(w, http.StatusOK, out)
}

type suggestRequest struct {
	EntityType string   `json:"entity_type"`
	Headers    []string `json:"headers"`
}

func (c *ImportAPIController) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "IMPORT_INVALID_BODY", "invalid json body")
		return
	}
	mapping, err := c.imports.SuggestMapping(req.EntityType, req.Headers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ColumnMappingsToViewModel(mapping))
}

func (c *ImportAPIController) ListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseNonNegative(q.Get("limit"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "IMPORT_INVALID_QUERY", "limit is invalid")
		return
	}
	offset, err := parseNonNegative(q.Get("offset"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "IMPORT_INVALID_QUERY", "offset is invalid")
		return
	}
	batches, err := c.imports.ListBatches(r.Context(), services.ListParams{
		IncludeUndone: q.Get("include_undone") == "true",
		EntityType:    q.Get("entity_type"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]*viewmodels.ImportBatch, 0, len(batches))
	for _, b := range batches {
		out = append(out, mappers.ImportBatchToViewModel(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *ImportAPIController) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	b, err := c.imports.GetBatch(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ImportBatchToViewModel(b))
}

func (c *ImportAPIController) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	snap, err := c.imports.Progress(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (c *ImportAPIController) GetErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	errs, err := c.imports.GetErrors(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]*viewmodels.ImportError, 0, len(errs))
	for _, e := range errs {
		out = append(out, mappers.ImportErrorToViewModel(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *ImportAPIController) ExportErrorsCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	data, err := c.imports.ExportErrorsCSV(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteAttachment(w, "text/csv; charset=utf-8", fmt.Sprintf("import-errors-%s.csv", id), data)
}

func (c *ImportAPIController) ExportErrorsXLSX(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	data, err := c.imports.ExportErrorsXLSX(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("import-errors-%s.xlsx", id), data)
}

func (c *ImportAPIController) Undo(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	if err := c.imports.Undo(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	b, err := c.imports.GetBatch(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ImportBatchToViewModel(b))
}

func batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "IMPORT_INVALID_ID", "batch id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func parseNonNegative(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return n, nil
}

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// writeServiceError maps the import error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		notFound     *importerrs.NotFoundError
		invalidState *importerrs.InvalidStateError
		validation   *importerrs.ValidationError
		parseErr     *importerrs.ParseError
		maxBytes     *http.MaxBytesError
	)
	switch {
	case errors.As(err, &notFound):
		writeAPIError(w, http.StatusNotFound, "IMPORT_NOT_FOUND", notFound.Error())
	case errors.As(err, &invalidState):
		writeAPIError(w, http.StatusConflict, "IMPORT_INVALID_STATE", invalidState.Error())
	case errors.As(err, &validation):
		writeAPIError(w, http.StatusBadRequest, "IMPORT_VALIDATION_FAILED", validation.Error())
	case errors.As(err, &parseErr):
		writeAPIError(w, http.StatusUnprocessableEntity, "IMPORT_PARSE_FAILED", parseErr.Error())
	case errors.As(err, &maxBytes):
		writeAPIError(w, http.StatusRequestEntityTooLarge, "IMPORT_TOO_LARGE", "file exceeds the upload limit")
	case errors.Is(err, schema.ErrUnknownEntityType):
		writeAPIError(w, http.StatusBadRequest, "IMPORT_UNKNOWN_ENTITY", err.Error())
	case errors.Is(err, composables.ErrNoTenant):
		writeAPIError(w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error())
	default:
		writeAPIError(w, http.StatusInternalServerError, "IMPORT_INTERNAL", "internal server error")
	}
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	_ = httpapi.WriteRequestError(w, status, code, message)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	_ = httpapi.WriteJSON(w, status, payload)
}
