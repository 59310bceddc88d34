// Package mock provides a scriptable analyzer.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// Response is one scripted Analyze outcome.
type Response struct {
	Result *analyzer.Result
	Err    error
}

// Provider implements analyzer.Provider with scripted responses.
//
// Responses are consumed in order; once the script is exhausted the fixed
// Result/Err pair is returned. The zero value returns an empty report for
// every call.
type Provider struct {
	mu sync.Mutex

	// Script holds responses consumed one per Analyze call.
	Script []Response

	// Result and Err are returned after Script is exhausted.
	Result *analyzer.Result
	Err    error

	// Requests records every request received, in call order.
	Requests []analyzer.Request
}

var _ analyzer.Provider = (*Provider)(nil)

// Analyze implements analyzer.Provider.
func (p *Provider) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, analyzer.Transient(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if len(p.Script) > 0 {
		next := p.Script[0]
		p.Script = p.Script[1:]
		return next.Result, next.Err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &analyzer.Result{Text: "report"}, nil
}

// Calls returns how many Analyze calls have been made.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// LastRequest returns the most recent request, or a zero request if none.
func (p *Provider) LastRequest() analyzer.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return analyzer.Request{}
	}
	return p.Requests[len(p.Requests)-1]
}
