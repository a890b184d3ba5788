package services

import (
	"errors"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/filex"
)

const msgInvalidImage = "Invalid file type. Only JPEG, JPG and PNG are allowed."

// Upload is an image received from a client.
type Upload struct {
	ContentType string
	Data        []byte
}

// checkImage validates u and returns the content type and extension to
// store it under.
func checkImage(u *Upload) (string, string, error) {
	contentType, ext, err := filex.DetectImageType(u.ContentType, u.Data)
	if err != nil {
		if errors.Is(err, filex.ErrUnsupportedImage) {
			return "", "", common.NewValidationError(msgInvalidImage)
		}
		return "", "", err
	}
	return contentType, ext, nil
}
