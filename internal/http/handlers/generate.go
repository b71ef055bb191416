package handlers

import (
	"net/http"

	"github.com/leavend/refgen/internal/generation"
	"github.com/leavend/refgen/internal/http/respond"
)

type generateRequest struct {
	PromptID       string `json:"promptId"`
	ReferenceImage string `json:"referenceImage"`
	MimeType       string `json:"mimeType"`
}

type generateTextRequest struct {
	Prompt string `json:"prompt"`
}

// Generate accepts JSON with a base64 referenceImage or a multipart form with
// a referenceImage file.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if isMultipart(r) {
		if err := a.parseMultipart(r); err != nil {
			a.error(w, r, err)
			return
		}
		req.PromptID = r.FormValue("promptId")
		req.MimeType = r.FormValue("mimeType")
		req.ReferenceImage = r.FormValue("referenceImage")
		file, err := readFormFile(r, "referenceImage")
		if err != nil {
			a.error(w, r, err)
			return
		}
		if file != nil {
			req.ReferenceImage = generation.EncodeImage(file.data)
			if req.MimeType == "" {
				req.MimeType = file.mimeType
			}
		}
	} else if err := a.decodeJSON(r, &req); err != nil {
		a.error(w, r, err)
		return
	}

	res, err := a.Service.GenerateFromReference(r.Context(), generation.ReferenceRequest{
		PromptID:       req.PromptID,
		ReferenceImage: req.ReferenceImage,
		MimeType:       req.MimeType,
	})
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "image generated successfully", res)
}

func (a *App) GenerateText(w http.ResponseWriter, r *http.Request) {
	var req generateTextRequest
	if err := a.decodeJSON(r, &req); err != nil {
		a.error(w, r, err)
		return
	}
	res, err := a.Service.GenerateFromText(r.Context(), req.Prompt)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "image generated successfully", res)
}

// TestConnection reports whether the provider answers. A failed probe is a
// 500 carrying the classified code and hint.
func (a *App) TestConnection(w http.ResponseWriter, r *http.Request) {
	status := a.Service.TestConnection(r.Context())
	if !status.Connected {
		respond.Write(w, http.StatusInternalServerError, respond.Envelope{
			Success: false,
			Message: status.Message,
			Data:    status,
			Error:   status.ErrorKind,
			Hint:    status.Hint,
		})
		return
	}
	a.json(w, http.StatusOK, "connection successful", status)
}

func (a *App) ListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := a.Service.ListPrompts(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "prompts retrieved", prompts)
}

func (a *App) ListGenerated(w http.ResponseWriter, r *http.Request) {
	list, err := a.Service.ListGeneratedArtifacts(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "generated images retrieved", list)
}

func (a *App) Debug(w http.ResponseWriter, r *http.Request) {
	d, err := a.Service.Diagnostics(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "diagnostics", d)
}
