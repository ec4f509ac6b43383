/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package vcs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v84/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProposal() Proposal {
	return Proposal{
		Owner:    "example",
		Repo:     "repo",
		Head:     "mergegate/fix-greeting",
		Base:     "main",
		Issue:    "add greeting output to main",
		Summary:  "Add greeting output",
		Files:    []string{"greeting.go"},
		Attempts: 2,
	}
}

func TestCreatePR(t *testing.T) {
	var got struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Head  string `json:"head"`
		Base  string `json:"base"`
	}
	var labels []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/example/repo/pulls", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"number": 7, "html_url": "https://github.com/example/repo/pull/7"}`)
	})
	mux.HandleFunc("POST /repos/example/repo/issues/7/labels", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&labels))
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	g, err := newGitHub(client)
	require.NoError(t, err)

	p := testProposal()
	p.Labels = []string{"automated"}
	prURL, err := g.CreatePR(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/example/repo/pull/7", prURL)
	assert.Equal(t, "Add greeting output", got.Title)
	assert.Equal(t, "mergegate/fix-greeting", got.Head)
	assert.Equal(t, "main", got.Base)
	assert.Contains(t, got.Body, "add greeting output to main")
	assert.Contains(t, got.Body, "2 verification attempts")
	assert.Contains(t, got.Body, "`greeting.go`")
	assert.Equal(t, []string{"automated"}, labels)
}

func TestCreatePRCustomTemplates(t *testing.T) {
	mux := http.NewServeMux()
	var title string
	mux.HandleFunc("POST /repos/example/repo/pulls", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		title = body.Title
		fmt.Fprint(w, `{"number": 1, "html_url": "https://github.com/example/repo/pull/1"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	g, err := newGitHub(client,
		WithTitleTemplate("fix: {{ .Summary }}"),
		WithBodyTemplate("closes {{ .Repo }}"),
	)
	require.NoError(t, err)

	_, err = g.CreatePR(context.Background(), testProposal())
	require.NoError(t, err)
	assert.Equal(t, "fix: Add greeting output", title)
}

func TestOptionRejectsBadTemplate(t *testing.T) {
	_, err := newGitHub(github.NewClient(nil), WithTitleTemplate("{{ .Broken"))
	assert.Error(t, err)
}
