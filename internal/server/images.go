package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	codeFileTooLarge    = "FILE_TOO_LARGE"
	codeUnsupportedType = "UNSUPPORTED_TYPE"
	codeImageLimit      = "IMAGE_LIMIT_REACHED"
	codeUnreadableFile  = "UNREADABLE_FILE"

	multipartMemory = 32 << 20
)

func imageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(pathParam(r, "imageID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, types.InvalidInputf("image id must be a positive integer")
	}
	return id, nil
}

// parseImageForm reads a multipart body, bounded by the number of files the
// route accepts.
func (s *Service) parseImageForm(w http.ResponseWriter, r *http.Request, maxFiles int) error {
	limit := s.config.UploadMaxFileBytes*int64(maxFiles) + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return types.InvalidInputf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return types.InvalidInputf("expected a multipart/form-data body")
	}

	return nil
}

// readImage applies the upload rules to one part and loads it into memory.
func (s *Service) readImage(header *multipart.FileHeader) (*types.ImageUpload, *types.FileError) {
	fileErr := func(code, msg string) *types.FileError {
		return &types.FileError{FileName: header.Filename, Code: code, Message: msg}
	}

	if header.Size > s.config.UploadMaxFileBytes {
		return nil, fileErr(codeFileTooLarge, fmt.Sprintf("file exceeds %d bytes", s.config.UploadMaxFileBytes))
	}

	file, err := header.Open()
	if err != nil {
		return nil, fileErr(codeUnreadableFile, "file could not be read")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fileErr(codeUnreadableFile, "file could not be read")
	}

	if len(data) == 0 {
		return nil, fileErr(codeUnreadableFile, "file is empty")
	}

	contentType := detectContentType(header, data)
	if !slices.Contains(s.config.UploadAllowedContentTypes, contentType) {
		return nil, fileErr(codeUnsupportedType, fmt.Sprintf("content type %s is not allowed", contentType))
	}

	return &types.ImageUpload{
		FileName:    filepath.Base(header.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// detectContentType trusts the part header unless it is missing or generic.
func detectContentType(header *multipart.FileHeader, data []byte) string {
	declared := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}

	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return sniffed
}

func (s *Service) handlePostImages(w http.ResponseWriter, r *http.Request) {
	var ctx = r.Context()

	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	fields := logrus.Fields{"request_id": id}

	if err := s.parseImageForm(w, r, s.config.UploadMaxImagesPerRequest); err != nil {
		s.handleError(w, r, err, fields)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		s.handleError(w, r, types.InvalidInputf("no files in field images"), fields)
		return
	}

	existing, err := s.images.List(ctx, id)
	if err != nil {
		s.handleError(w, r, err, fields)
		return
	}
	remaining := s.config.UploadMaxImagesPerRequest - len(existing)

	var (
		accepted  = make([]types.ImageUpload, 0, len(headers))
		positions = make([]int, 0, len(headers))
		rejected  = make([]types.FileError, 0)
	)

	for i, header := range headers {
		if len(accepted) >= remaining {
			rejected = append(rejected, types.FileError{
				Index:    i,
				FileName: header.Filename,
				Code:     codeImageLimit,
				Message:  fmt.Sprintf("request already holds the maximum of %d images", s.config.UploadMaxImagesPerRequest),
			})
			continue
		}

		upload, fileErr := s.readImage(header)
		if fileErr != nil {
			fileErr.Index = i
			rejected = append(rejected, *fileErr)
			continue
		}

		accepted = append(accepted, *upload)
		positions = append(positions, i)
	}

	result := &types.UploadResult{
		Uploaded: make([]*types.ImageRecord, 0),
		Errors:   rejected,
	}

	if len(accepted) > 0 {
		stored, err := s.images.Upload(ctx, id, accepted)
		if err != nil {
			s.handleError(w, r, err, fields)
			return
		}

		result.Uploaded = stored.Uploaded
		for _, fileErr := range stored.Errors {
			fileErr.Index = positions[fileErr.Index]
			result.Errors = append(result.Errors, fileErr)
		}
		slices.SortFunc(result.Errors, func(a, b types.FileError) int { return a.Index - b.Index })
	}

	if len(result.Uploaded) == 0 {
		writeErrorDetails(w, http.StatusBadRequest, codeInvalidInput,
			fmt.Sprintf("none of the %s could be uploaded", formatCount(len(headers), "file")), result)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Service) handleGetImages(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	images, err := s.images.List(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err, logrus.Fields{"request_id": id})
		return
	}

	writeJSON(w, http.StatusOK, images)
}

func (s *Service) handleDeleteImages(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	result, err := s.images.DeleteAll(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err, logrus.Fields{"request_id": id})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleGetImageInfo(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	imgID, err := imageID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	info, err := s.images.Info(r.Context(), id, imgID)
	if err != nil {
		s.handleError(w, r, err, logrus.Fields{"request_id": id, "image_id": imgID})
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Service) handleReplaceImage(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	imgID, err := imageID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	fields := logrus.Fields{"request_id": id, "image_id": imgID}

	if err := s.parseImageForm(w, r, 1); err != nil {
		s.handleError(w, r, err, fields)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["image"]
	if len(headers) != 1 {
		s.handleError(w, r, types.InvalidInputf("exactly one file is required in field image"), fields)
		return
	}

	upload, fileErr := s.readImage(headers[0])
	if fileErr != nil {
		writeErrorDetails(w, http.StatusBadRequest, codeInvalidInput, fileErr.Message, fileErr)
		return
	}

	result, err := s.images.Replace(r.Context(), id, imgID, upload)
	if err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	imgID, err := imageID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	result, err := s.images.Delete(r.Context(), id, imgID)
	if err != nil {
		s.handleError(w, r, err, logrus.Fields{"request_id": id, "image_id": imgID})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
