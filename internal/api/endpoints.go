package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bazarteer/bazaar/internal/session"
)

// OwnProfileID asks the profile endpoints for the caller's own record.
const OwnProfileID = "0"

// Register creates an account and returns the credential the server issues.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	body, err := c.do(ctx, call{endpoint: "register", method: http.MethodPost, path: "/user/register", body: req})
	if err != nil {
		return "", err
	}
	return credentialFrom("register", body)
}

// Login exchanges username and password for a credential.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := c.do(ctx, call{
		endpoint: "login",
		method:   http.MethodPost,
		path:     "/user/login",
		body:     loginRequest{Username: username, Password: password},
	})
	if err != nil {
		return "", err
	}
	return credentialFrom("login", body)
}

// The credential is the raw text body, sometimes wrapped in JSON quotes.
func credentialFrom(endpoint string, body []byte) (string, error) {
	cred := session.SanitizeCredential(string(body))
	if cred == "" {
		return "", fmt.Errorf("%s: server returned an empty credential", endpoint)
	}
	return cred, nil
}

// UserByID fetches a public profile. Pass OwnProfileID for the caller's own.
func (c *Client) UserByID(ctx context.Context, userID string) (UserProfile, error) {
	var p UserProfile
	err := c.getJSON(ctx, "user_by_id", "/user/getById", url.Values{"userId": {userID}}, &p)
	return p, err
}

// Recommended fetches the next batch of recommended listings.
func (c *Client) Recommended(ctx context.Context) ([]Listing, error) {
	var r recommendedResponse
	if err := c.getJSON(ctx, "recommended", "/product/getRecommended", nil, &r); err != nil {
		return nil, err
	}
	return r.Products, nil
}

// ListingsByOwner fetches the listings published by userID.
func (c *Client) ListingsByOwner(ctx context.Context, userID string) ([]Listing, error) {
	body, err := c.do(ctx, call{
		endpoint: "listings_by_owner",
		method:   http.MethodGet,
		path:     "/product/getProductsByOwner",
		query:    url.Values{"userId": {userID}},
		auth:     true,
		retry:    true,
	})
	if err != nil {
		return nil, err
	}
	// Some deployments wrap the list like the recommended feed does.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var r recommendedResponse
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, fmt.Errorf("listings_by_owner: decode response: %w", err)
		}
		return r.Products, nil
	}
	var out []Listing
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("listings_by_owner: decode response: %w", err)
	}
	return out, nil
}

// UploadURL requests a write URL for filename.
func (c *Client) UploadURL(ctx context.Context, filename string) (UploadTarget, error) {
	var t UploadTarget
	if err := c.getJSON(ctx, "upload_url", "/product/generate-upload-url", url.Values{"filename": {filename}}, &t); err != nil {
		return t, err
	}
	if t.UploadURL == "" || t.BlobURL == "" {
		return t, fmt.Errorf("upload_url: response is missing uploadUrl or blobUrl")
	}
	return t, nil
}

// PutBlob writes data to a pre-signed object storage URL. The URL carries
// its own authorization, so no bearer credential is sent.
func (c *Client) PutBlob(ctx context.Context, uploadURL, contentType string, data []byte) error {
	headers := http.Header{}
	headers.Set("x-ms-blob-type", "BlockBlob")
	headers.Set("Content-Type", contentType)
	if data == nil {
		data = []byte{}
	}
	_, err := c.send(ctx, "put_blob", http.MethodPut, uploadURL, headers, data, true)
	return err
}

// Publish creates a listing.
func (c *Client) Publish(ctx context.Context, req PublishRequest) error {
	_, err := c.do(ctx, call{endpoint: "publish", method: http.MethodPost, path: "/product/publish", body: req, auth: true})
	return err
}

// PlaceOrder submits an order for a single listing.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) error {
	_, err := c.do(ctx, call{endpoint: "place_order", method: http.MethodPost, path: "/order/placeOrder", body: req, auth: true})
	return err
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	body, err := c.do(ctx, call{
		endpoint: endpoint,
		method:   http.MethodGet,
		path:     path,
		query:    q,
		auth:     true,
		retry:    true,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}
