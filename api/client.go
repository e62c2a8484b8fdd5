// Package api provides a native Go client over the coordinator's HTTP
// surface (§6): the thin SDK a collaborator process (dashboard, CLI,
// another controller's pull loop) links against instead of hand-rolling
// HTTP calls.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package api

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/qosmcast/heatctl/cmn/cos"
	"github.com/qosmcast/heatctl/cmn/nlog"
	"github.com/qosmcast/heatctl/coordinator"
	"github.com/qosmcast/heatctl/topology"
)

// retryBackoff implements §7's TransientI/O policy for HTTP calls against
// the coordinator: bounded backoff from 100ms, doubling, capped at 2s per
// wait and 30s overall.
var retryBackoff = []time.Duration{
	100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
	800 * time.Millisecond, 1600 * time.Millisecond, 2 * time.Second,
}

const retryBudget = 30 * time.Second

// withRetry runs do, retrying on transient I/O errors (§7) under a
// correlation id used for log attribution across the retry sequence.
func withRetry(op string, do func() (*http.Response, error)) (*http.Response, error) {
	cid := cos.GenShortID()
	deadline := time.Now().Add(retryBudget)
	var lastErr error
	for attempt := 0; attempt < len(retryBackoff); attempt++ {
		resp, err := do()
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.Errorf("status %d", resp.StatusCode)
			resp.Body.Close()
		}
		if err != nil && !cos.IsRetriableConnErr(err) && !cos.IsEOF(err) {
			return nil, lastErr
		}
		wait := retryBackoff[attempt]
		if time.Now().Add(wait).After(deadline) {
			return nil, errors.Wrapf(lastErr, "api: %s [%s]: retry budget exhausted", op, cid)
		}
		nlog.Warningf("api: %s [%s]: transient error %v, retrying in %s", op, cid, lastErr, wait)
		time.Sleep(wait)
	}
	return nil, errors.Wrapf(lastErr, "api: %s [%s]: retries exhausted", op, cid)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BaseParams is the per-call connection info, mirroring the teacher's
// api.BaseParams without its connection pooling machinery — one
// coordinator, no retry-group fan-out.
type BaseParams struct {
	URL    string
	Client *http.Client
}

func (bp BaseParams) httpClient() *http.Client {
	if bp.Client != nil {
		return bp.Client
	}
	return http.DefaultClient
}

// Enter calls /enter?cid=<n> (§6).
func Enter(bp BaseParams, cid int16) error {
	_, err := doGetBytes(bp, "/enter", url.Values{"cid": {strconv.Itoa(int(cid))}})
	return err
}

// Leave calls /leave?cid=<n> (§6).
func Leave(bp BaseParams, cid int16) error {
	_, err := doGetBytes(bp, "/leave", url.Values{"cid": {strconv.Itoa(int(cid))}})
	return err
}

// Switches fetches the coordinator's current switch set.
func Switches(bp BaseParams) ([]topology.Switch, error) {
	var out []topology.Switch
	err := doGetJSON(bp, "/switches", nil, &out)
	return out, err
}

// Links fetches the online-shard-filtered link set (§6 "/links").
func Links(bp BaseParams) ([]topology.Link, error) {
	var out []topology.Link
	err := doGetJSON(bp, "/links", nil, &out)
	return out, err
}

// AllLinks fetches the unfiltered, binary-encoded link set (§6
// "/all_links").
func AllLinks(bp BaseParams) ([]coordinator.LinkWire, error) {
	raw, err := doGetBytes(bp, "/all_links", nil)
	if err != nil {
		return nil, err
	}
	return coordinator.DecodeLinks(raw)
}

// Trees fetches the trees and session-table pending for cid under §4.5's
// pull protocol.
func Trees(bp BaseParams, cid int16) (coordinator.TreeBundle, error) {
	raw, err := doGetBytes(bp, "/trees", url.Values{"cid": {strconv.Itoa(int(cid))}})
	if err != nil {
		return coordinator.TreeBundle{}, err
	}
	return coordinator.DecodeTreeBundle(raw)
}

// GroupAdd calls /group_add with {src, dst[]} (§6).
func GroupAdd(bp BaseParams, src uint64, dst []uint64) error {
	return doPostJSON(bp, "/group_add", coordinator.GroupRequest{Src: src, Dst: dst})
}

// GroupMod calls /group_mod with {src, dst[]} (§6).
func GroupMod(bp BaseParams, src uint64, dst []uint64) error {
	return doPostJSON(bp, "/group_mod", coordinator.GroupRequest{Src: src, Dst: dst})
}

func doGetBytes(bp BaseParams, path string, q url.Values) ([]byte, error) {
	u := bp.URL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := withRetry("GET "+path, func() (*http.Response, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return bp.httpClient().Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("api: GET %q: status %d: %s", path, resp.StatusCode, body)
	}
	return body, nil
}

func doGetJSON(bp BaseParams, path string, q url.Values, out any) error {
	raw, err := doGetBytes(bp, path, q)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func doPostJSON(bp BaseParams, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := withRetry("POST "+path, func() (*http.Response, error) {
		req, err := http.NewRequest(http.MethodPost, bp.URL+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return bp.httpClient().Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return errors.Errorf("api: POST %q: status %d: %s", path, resp.StatusCode, msg)
	}
	return nil
}

// defaultTimeout mirrors the coordinator's own 2s shutdown grace as a
// sane client-side ceiling; callers needing different behavior should
// set BaseParams.Client explicitly.
const defaultTimeout = 5 * time.Second

// NewBaseParams builds BaseParams with a client bounded by
// defaultTimeout.
func NewBaseParams(coordinatorURL string) BaseParams {
	return BaseParams{URL: coordinatorURL, Client: &http.Client{Timeout: defaultTimeout}}
}
