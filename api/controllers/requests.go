package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/angelmondragon/tracebridge-backend/api/responses"
	"github.com/angelmondragon/tracebridge-backend/api/validators"
	"github.com/angelmondragon/tracebridge-backend/internal/contributions"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

const (
	draftPayloadField   = "payload"
	multipartMemoryCap  = 8 << 20
	defaultDraftMaxBody = 64 << 20
)

// ListRequests pages through the supplier inbox.
func ListRequests(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contribution")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inbox, err := svc.ListForSupplier(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inbox)
	}
}

// GetRequest returns the request detail visible to either party.
func GetRequest(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contribution")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetDetail(r.Context(), actor, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type requestActionRequest struct {
	Action string  `json:"action" validate:"required,oneof=accept submit decline"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// RequestAction applies a supplier action (accept, submit, decline).
func RequestAction(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contribution")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body requestActionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := enums.ParseRequestAction(body.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}

		request, err := svc.HandleAction(r.Context(), actor, requestID, contributions.ActionInput{Action: action, Note: body.Note})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

type reviewRequest struct {
	Action  string  `json:"action" validate:"required,oneof=approve request_changes"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=4000"`
}

// ReviewRequest records the brand's decision on a submitted version.
func ReviewRequest(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contribution")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body reviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := enums.ParseReviewAction(body.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid review action"))
			return
		}

		request, err := svc.ReviewSubmission(r.Context(), actor, requestID, contributions.ReviewInput{Action: action, Comment: body.Comment})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=2000"`
}

// CancelRequest withdraws an open request on the brand's behalf.
func CancelRequest(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contribution")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		request, err := svc.Cancel(r.Context(), actor, requestID, validators.SanitizeString(body.Reason, 2000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

type commentRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

// AddComment appends a comment to the request activity log.
func AddComment(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contribution")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body commentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		comment, err := svc.AddComment(r.Context(), actor, requestID, body.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, comment)
	}
}

// SaveDraft stores a partial draft. The body is multipart: a JSON "payload"
// part plus one file part per certificate upload_ref.
func SaveDraft(svc contributions.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = defaultDraftMaxBody
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contribution")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, uploads, cleanup, err := parseDraftForm(w, r, maxBytes)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, err := svc.SaveDraftData(r.Context(), actor, requestID, input, uploads)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

func parseDraftForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (contributions.DraftInput, map[string]contributions.Upload, func(), error) {
	var input contributions.DraftInput

	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/") {
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return input, nil, nil, err
		}
		return input, nil, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemoryCap); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return input, nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "upload exceeds %d bytes", maxBytes)
		}
		return input, nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	form := r.MultipartForm
	cleanup := func() { _ = form.RemoveAll() }

	raw := form.Value[draftPayloadField]
	if len(raw) == 0 {
		return input, nil, cleanup, pkgerrors.New(pkgerrors.CodeValidation, "payload part is required")
	}
	if err := validators.DecodeJSON(strings.NewReader(raw[0]), &input); err != nil {
		return input, nil, cleanup, err
	}

	uploads := make(map[string]contributions.Upload, len(form.File))
	var opened []multipart.File
	for ref, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		header := headers[0]
		file, err := header.Open()
		if err != nil {
			closeAll(opened)
			return input, nil, cleanup, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
		}
		opened = append(opened, file)
		uploads[ref] = contributions.Upload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
		}
	}

	return input, uploads, func() {
		closeAll(opened)
		cleanup()
	}, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
