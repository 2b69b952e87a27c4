package main

import (
	"context"
	"strconv"
	"sync"

	"github.com/sells-group/tcsync/pkg/xray"
)

// stubXray is an in-memory xray.Client that accepts every call.
type stubXray struct {
	mu      sync.Mutex
	created []xray.IssueFields
}

func (s *stubXray) Create(_ context.Context, f xray.IssueFields) (*xray.IssueRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, f)
	n := len(s.created)
	return &xray.IssueRef{ID: strconv.Itoa(n), Key: f.ProjectKey + "-" + strconv.Itoa(n)}, nil
}

func (s *stubXray) Update(_ context.Context, id string, _ xray.IssueFields) (*xray.IssueRef, error) {
	return &xray.IssueRef{ID: id}, nil
}

func (s *stubXray) LinkToPlan(_ context.Context, _ string, ids []string) (*xray.LinkResult, error) {
	return &xray.LinkResult{AddedCount: len(ids)}, nil
}

func (s *stubXray) LinkToExecution(_ context.Context, _ string, ids []string) (*xray.LinkResult, error) {
	return &xray.LinkResult{AddedCount: len(ids)}, nil
}

func (s *stubXray) LinkToSet(_ context.Context, _ string, ids []string) (*xray.LinkResult, error) {
	return &xray.LinkResult{AddedCount: len(ids)}, nil
}

func (s *stubXray) LinkToFolder(_ context.Context, _, _ string, ids []string) (*xray.LinkResult, error) {
	return &xray.LinkResult{AddedCount: len(ids)}, nil
}

func (s *stubXray) LinkPreconditions(_ context.Context, _ string, ids []string) (*xray.LinkResult, error) {
	return &xray.LinkResult{AddedCount: len(ids)}, nil
}

func (s *stubXray) FetchLinks(context.Context, string) (*xray.TestLinks, error) {
	return &xray.TestLinks{}, nil
}
