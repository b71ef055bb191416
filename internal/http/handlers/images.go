package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leavend/refgen/internal/generation"
)

type uploadRequest struct {
	ID         string `json:"id"`
	PromptID   string `json:"promptId"`
	PromptName string `json:"promptName"`
	Prompt     string `json:"prompt"`
	Image      string `json:"image"`
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
}

// UploadImage stores a reference image from JSON (base64 image) or a
// multipart form with an image file.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	var req generation.UploadRequest
	if isMultipart(r) {
		if err := a.parseMultipart(r); err != nil {
			a.error(w, r, err)
			return
		}
		req = generation.UploadRequest{
			ID:          r.FormValue("id"),
			PromptID:    r.FormValue("promptId"),
			PromptName:  r.FormValue("promptName"),
			PromptText:  r.FormValue("prompt"),
			ImageBase64: r.FormValue("image"),
			MimeType:    r.FormValue("mimeType"),
		}
		file, err := readFormFile(r, "image")
		if err != nil {
			a.error(w, r, err)
			return
		}
		if file != nil {
			req.Image = file.data
			req.FileName = file.name
			if req.MimeType == "" {
				req.MimeType = file.mimeType
			}
		}
	} else {
		var body uploadRequest
		if err := a.decodeJSON(r, &body); err != nil {
			a.error(w, r, err)
			return
		}
		req = generation.UploadRequest{
			ID:          body.ID,
			PromptID:    body.PromptID,
			PromptName:  body.PromptName,
			PromptText:  body.Prompt,
			ImageBase64: body.Image,
			FileName:    body.FileName,
			MimeType:    body.MimeType,
		}
	}

	summary, err := a.Service.UploadPrompt(r.Context(), req)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, "image uploaded successfully", summary)
}

func (a *App) ListImages(w http.ResponseWriter, r *http.Request) {
	list, err := a.Service.ListImages(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "images retrieved", list)
}

func (a *App) GetImage(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Service.GetImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "image retrieved", rec)
}

func (a *App) ImagesByPrompt(w http.ResponseWriter, r *http.Request) {
	recs, err := a.Service.ImagesByPrompt(r.Context(), chi.URLParam(r, "promptId"))
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "images retrieved", recs)
}

func (a *App) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Service.DeleteImage(r.Context(), id); err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, "image deleted successfully", map[string]string{"id": id})
}
