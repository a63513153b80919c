package echoapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core/apiclient"
)

const maxMemory = 32 << 20

func (s *server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "time": time.Now().UTC()})
}

func (s *server) version(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"name": s.deps.Conf.AppName, "version": s.deps.Conf.Build})
}

// fromTable answers the request from the mock table. Payloads flagged `"success": false`
// are sent as 401 on auth paths and 400 elsewhere, like a real backend would.
func (s *server) fromTable(ctx echo.Context) error {
	req, err := tableRequest(ctx)
	if err != nil {
		return err
	}
	res := s.deps.Mock.Lookup(req)
	if res.Status != apiclient.MockHit {
		return errHttpNotFound
	}

	var flag struct {
		Success *bool `json:"success"`
	}
	code := http.StatusOK
	if json.Unmarshal(res.Payload, &flag) == nil && flag.Success != nil && !*flag.Success {
		code = http.StatusBadRequest
		if strings.HasPrefix(req.Path, "/api/auth/") {
			code = http.StatusUnauthorized
		}
	}
	return ctx.JSONBlob(code, res.Payload)
}

// downloadFile serves a merged upload. name is the hash of the file, possibly followed by its extension.
func (s *server) downloadFile(ctx echo.Context) error {
	name := ctx.Param("name")
	hash := strings.TrimSuffix(name, path.Ext(name))

	info, data, ok := s.deps.Files.File(hash)
	if !ok {
		return errHttpNotFound
	}
	contentType := mime.TypeByExtension(path.Ext(info.Name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": info.Name}))
	return ctx.Blob(http.StatusOK, contentType, data)
}

// tableRequest turns the HTTP request into the apiclient.Request the mock table matches on.
func tableRequest(ctx echo.Context) (*apiclient.Request, error) {
	r := ctx.Request()
	req := &apiclient.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
	}

	if strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := readForm(ctx)
		if err != nil {
			return nil, err
		}
		req.Form = form
		return req, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading request body")
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if !json.Valid(body) {
			return nil, errBadRequestBody
		}
		req.Body = json.RawMessage(body)
	}
	return req, nil
}

func readForm(ctx echo.Context) (*apiclient.Form, error) {
	if err := ctx.Request().ParseMultipartForm(maxMemory); err != nil {
		return nil, errBadRequestBody
	}
	mf := ctx.Request().MultipartForm
	form := &apiclient.Form{Fields: url.Values(mf.Value)}

	for field, headers := range mf.File {
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening form file")
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, errors.Wrap(err, "reading form file")
		}
		form.FileField, form.FileName, form.File = field, headers[0].Filename, data
		break
	}
	return form, nil
}
