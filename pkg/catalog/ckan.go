package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/httpclient"
)

const actionPath = "/api/3/action/"

// CKAN is a Catalog backed by the CKAN action API.
type CKAN struct {
	api *httpclient.APIClient
}

// NewCKAN creates a client for the CKAN site that api points at.
func NewCKAN(api *httpclient.APIClient) *CKAN {
	return &CKAN{api: api}
}

// envelope is the standard CKAN action response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *actionError    `json:"error,omitempty"`
}

type actionError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

func (e *actionError) String() string {
	if e == nil {
		return "unknown error"
	}
	if e.Message == "" {
		return e.Type
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// call invokes an action and decodes its result into out.
func (c *CKAN) call(
	ctx context.Context, action string, query url.Values, body, out any,
) error {
	var env envelope
	var err error
	if body != nil {
		err = c.api.PostJSON(ctx, actionPath+action, body, &env)
	} else {
		err = c.api.GetJSON(ctx, actionPath+action, query, &env)
	}
	if err != nil {
		return c.translate(action, err)
	}
	if !env.Success {
		if env.Error != nil && env.Error.Type == "Not Found Error" {
			return errors.Mark(
				errors.Newf("%s: %s", action, env.Error), ErrNotFound,
			)
		}
		return errors.Newf("%s failed: %s", action, env.Error)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(env.Result))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s result", action)
	}
	return nil
}

// translate maps transport errors onto catalog sentinels, pulling
// the CKAN error message out of the body when one is present.
func (c *CKAN) translate(action string, err error) error {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return errors.Wrapf(err, "%s", action)
	}

	var env envelope
	msg := se.Error()
	if json.Unmarshal(se.Body, &env) == nil && env.Error != nil {
		msg = env.Error.String()
	}

	wrapped := errors.Newf("%s: HTTP %d: %s", action, se.StatusCode, msg)
	if se.StatusCode == http.StatusNotFound {
		return errors.Mark(wrapped, ErrNotFound)
	}
	return wrapped
}

// RowCount uses datastore_info, which reports the true row count
// regardless of any page size limit on the site.
func (c *CKAN) RowCount(ctx context.Context, resourceID string) (int, error) {
	var info struct {
		Meta struct {
			Count json.Number `json:"count"`
		} `json:"meta"`
	}
	err := c.call(ctx, "datastore_info",
		url.Values{"id": {resourceID}}, nil, &info)
	if errors.Is(err, ErrNotFound) {
		return 0, errors.Mark(err, ErrDatastoreInactive)
	}
	if err != nil {
		return 0, err
	}
	if info.Meta.Count == "" {
		return 0, nil
	}
	n, err := info.Meta.Count.Int64()
	if err != nil {
		return 0, errors.Wrapf(err, "row count for %s", resourceID)
	}
	return int(n), nil
}

// Schema uses datastore_search with limit=0, which returns the
// field list without records.
func (c *CKAN) Schema(ctx context.Context, resourceID string) ([]Field, error) {
	var res struct {
		Fields []Field `json:"fields"`
	}
	err := c.call(ctx, "datastore_search", url.Values{
		"resource_id": {resourceID},
		"limit":       {"0"},
	}, nil, &res)
	if err != nil {
		return nil, err
	}
	return res.Fields, nil
}

// Page fetches one page of a single field.
func (c *CKAN) Page(
	ctx context.Context,
	resourceID, field string,
	limit, offset int,
) ([]any, error) {
	var res struct {
		Records []map[string]any `json:"records"`
	}
	err := c.call(ctx, "datastore_search", url.Values{
		"resource_id":   {resourceID},
		"limit":         {strconv.Itoa(limit)},
		"offset":        {strconv.Itoa(offset)},
		"fields":        {field},
		"include_total": {"false"},
	}, nil, &res)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(res.Records))
	for i, rec := range res.Records {
		values[i] = rec[field]
	}
	return values, nil
}

// Resource calls resource_show.
func (c *CKAN) Resource(ctx context.Context, resourceID string) (*Resource, error) {
	var r Resource
	err := c.call(ctx, "resource_show",
		url.Values{"id": {resourceID}}, nil, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Package calls package_show.
func (c *CKAN) Package(ctx context.Context, packageID string) (*Package, error) {
	var p Package
	err := c.call(ctx, "package_show",
		url.Values{"id": {packageID}}, nil, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPackagePrivate patches the package's private flag.
func (c *CKAN) SetPackagePrivate(ctx context.Context, packageID string) error {
	return c.call(ctx, "package_patch", nil, map[string]any{
		"id":      packageID,
		"private": true,
	}, nil)
}
