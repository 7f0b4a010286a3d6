package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

const (
	driveFolderMime = "application/vnd.google-apps.folder"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
	googleAuthURL   = "https://accounts.google.com/o/oauth2/auth"
)

type DriveConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// APIBase and UploadBase default to the public Google endpoints.
	APIBase    string
	UploadBase string
	MaxBytes   int64
}

// DriveStore uploads through the Drive v3 REST API with an offline refresh token.
type DriveStore struct {
	http       *http.Client
	apiBase    string
	uploadBase string
	maxBytes   int64
}

func NewDriveStore(ctx context.Context, cfg DriveConfig) (*DriveStore, error) {
	if cfg.RefreshToken == "" {
		return nil, errors.New("drive refresh token is required")
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: googleAuthURL, TokenURL: googleTokenURL},
		Scopes:       []string{"https://www.googleapis.com/auth/drive.file"},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return newDriveStore(oauth2.NewClient(ctx, ts), cfg), nil
}

func newDriveStore(client *http.Client, cfg DriveConfig) *DriveStore {
	api := cfg.APIBase
	if api == "" {
		api = "https://www.googleapis.com"
	}
	upload := cfg.UploadBase
	if upload == "" {
		upload = api
	}
	return &DriveStore{
		http:       client,
		apiBase:    strings.TrimRight(api, "/"),
		uploadBase: strings.TrimRight(upload, "/"),
		maxBytes:   cfg.MaxBytes,
	}
}

func (d *DriveStore) Name() string { return "drive" }

func (d *DriveStore) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := map[string]any{"name": name, "mimeType": driveFolderMime}
	if parentID != "" {
		meta["parents"] = []string{parentID}
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase+"/drive/v3/files?fields=id", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		ID string `json:"id"`
	}
	if err := d.doJSON(req, &out, "create folder"); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("drive: create folder returned no id")
	}
	return out.ID, nil
}

// Upload runs a resumable upload in one PUT: init the session, then send the whole file.
func (d *DriveStore) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	data, sum, err := readLimited(in.Body, d.maxBytes)
	if err != nil {
		return nil, err
	}
	contentType := contentTypeOr(in.ContentType)

	meta := map[string]any{"name": in.Filename, "mimeType": contentType}
	if in.FolderID != "" {
		meta["parents"] = []string{in.FolderID}
	}
	metaBody, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	initReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.uploadBase+"/upload/drive/v3/files?uploadType=resumable", bytes.NewReader(metaBody))
	if err != nil {
		return nil, err
	}
	initReq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	initReq.Header.Set("X-Upload-Content-Type", contentType)
	initReq.Header.Set("X-Upload-Content-Length", strconv.Itoa(len(data)))

	resp, err := d.http.Do(initReq)
	if err != nil {
		return nil, fmt.Errorf("drive: init upload: %w", err)
	}
	drain(resp)
	if err := checkStatus(resp, "init upload"); err != nil {
		return nil, err
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, errors.New("drive: init upload returned no location")
	}
	if _, err := url.Parse(location); err != nil {
		return nil, fmt.Errorf("drive: bad upload location: %w", err)
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, location, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	putReq.Header.Set("Content-Type", contentType)
	end := 0
	if len(data) > 0 {
		end = len(data) - 1
	}
	putReq.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", end, len(data)))

	var out struct {
		ID string `json:"id"`
	}
	if err := d.doJSON(putReq, &out, "upload"); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("drive: upload returned no file id")
	}
	return &Object{ID: out.ID, Bytes: int64(len(data)), SHA256: sum}, nil
}

func (d *DriveStore) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, d.apiBase+"/drive/v3/files/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("drive: delete: %w", err)
	}
	drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp, "delete")
}

func (d *DriveStore) doJSON(req *http.Request, out any, op string) error {
	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("drive: %s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("drive: %s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("drive: %s: decode: %w", op, err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("drive: %s: status %d", op, resp.StatusCode)
	}
	return nil
}
