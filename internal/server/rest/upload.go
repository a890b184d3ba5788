package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophsocial/internal/server/services"
)

// multipartOverhead leaves room for form fields next to the file itself.
const multipartOverhead = 1 << 20

// parseMultipart bounds the body and parses a multipart form. Requests that
// are not multipart are left alone so JSON bodies keep working.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)

	err := r.ParseMultipartForm(s.maxUploadBytes)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return errPayloadTooLarge
	}
	return fmt.Errorf("%w: %v", errBadJSON, err)
}

// formUpload returns the named file part, or nil when it is absent.
func (s *Server) formUpload(r *http.Request, field string) (*services.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	if header.Size > s.maxUploadBytes {
		return nil, errPayloadTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, errPayloadTooLarge
	}

	return &services.Upload{ContentType: header.Header.Get("Content-Type"), Data: data}, nil
}
