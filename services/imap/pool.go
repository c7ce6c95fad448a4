package imap

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/semaphore"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

// connectionPool lends authenticated sessions under two caps: a global one
// across all accounts and a smaller per-account one. Permits are held only
// while a session is borrowed; idle sessions keep their connection open but
// hold no permit.
type connectionPool struct {
	cfg     *config.FetchConfig
	log     logger.Logger
	factory interfaces.SessionFactory

	global      *semaphore.Weighted
	idleTimeout time.Duration

	mu         sync.Mutex
	perAccount map[string]*semaphore.Weighted
	idle       map[string][]*interfaces.PooledSession

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConnectionPool(cfg *config.FetchConfig, log logger.Logger, factory interfaces.SessionFactory) interfaces.ConnectionPool {
	p := &connectionPool{
		cfg:         cfg,
		log:         log,
		factory:     factory,
		global:      semaphore.NewWeighted(int64(cfg.MaxGlobalConnections)),
		idleTimeout: time.Duration(cfg.ConnectionIdleSeconds) * time.Second,
		perAccount:  make(map[string]*semaphore.Weighted),
		idle:        make(map[string][]*interfaces.PooledSession),
		stopCh:      make(chan struct{}),
	}
	go p.reapIdle()
	return p
}

func (p *connectionPool) accountSem(email string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.perAccount[email]
	if !ok {
		sem = semaphore.NewWeighted(int64(p.cfg.MaxConnectionsPerAccount))
		p.perAccount[email] = sem
	}
	return sem
}

func (p *connectionPool) Acquire(ctx context.Context, email, accessToken string) (*interfaces.PooledSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "connectionPool.Acquire")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, email)

	// Account permit first so one noisy account cannot starve the global cap.
	accountSem := p.accountSem(email)
	if err := accountSem.Acquire(ctx, 1); err != nil {
		tracing.TraceErr(span, err)
		return nil, er.NewPoolError(email, er.PoolExhausted, err)
	}
	if err := p.global.Acquire(ctx, 1); err != nil {
		accountSem.Release(1)
		tracing.TraceErr(span, err)
		return nil, er.NewPoolError(email, er.PoolExhausted, err)
	}

	if session := p.takeIdle(email); session != nil {
		span.SetTag("reused", true)
		return session, nil
	}

	session, err := p.factory.Connect(ctx, email, accessToken)
	if err != nil {
		p.global.Release(1)
		accountSem.Release(1)
		tracing.TraceErr(span, err)
		return nil, err
	}

	now := utils.Now()
	return &interfaces.PooledSession{
		ID:        utils.GenerateNanoIDWithPrefix("sess", 12),
		Email:     email,
		Session:   session,
		CreatedAt: now,
		LastUsed:  now,
	}, nil
}

// takeIdle pops idle sessions for the account until one passes a liveness
// probe. Stale or dead sessions are discarded on the way.
func (p *connectionPool) takeIdle(email string) *interfaces.PooledSession {
	for {
		p.mu.Lock()
		sessions := p.idle[email]
		if len(sessions) == 0 {
			p.mu.Unlock()
			return nil
		}
		session := sessions[len(sessions)-1]
		p.idle[email] = sessions[:len(sessions)-1]
		p.mu.Unlock()

		if time.Since(session.LastUsed) > p.idleTimeout {
			session.Session.Logout()
			continue
		}
		if err := session.Session.Noop(); err != nil {
			p.log.Warnf("[%s] discarding dead idle session %s: %v", email, session.ID, err)
			session.Session.Logout()
			continue
		}

		session.LastUsed = utils.Now()
		return session
	}
}

func (p *connectionPool) Release(session *interfaces.PooledSession, healthy bool) {
	if session == nil {
		return
	}

	if healthy {
		session.LastUsed = utils.Now()
		p.mu.Lock()
		p.idle[session.Email] = append(p.idle[session.Email], session)
		p.mu.Unlock()
	} else {
		session.Session.Logout()
	}

	p.global.Release(1)
	p.accountSem(session.Email).Release(1)
}

func (p *connectionPool) CloseAccount(email string) {
	p.mu.Lock()
	sessions := p.idle[email]
	delete(p.idle, email)
	p.mu.Unlock()

	for _, session := range sessions {
		session.Session.Logout()
	}
}

func (p *connectionPool) CloseAll() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	all := p.idle
	p.idle = make(map[string][]*interfaces.PooledSession)
	p.mu.Unlock()

	for _, sessions := range all {
		for _, session := range sessions {
			session.Session.Logout()
		}
	}
}

func (p *connectionPool) reapIdle() {
	interval := p.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.dropExpired()
		}
	}
}

func (p *connectionPool) dropExpired() {
	var expired []*interfaces.PooledSession

	p.mu.Lock()
	for email, sessions := range p.idle {
		kept := sessions[:0]
		for _, session := range sessions {
			if time.Since(session.LastUsed) > p.idleTimeout {
				expired = append(expired, session)
			} else {
				kept = append(kept, session)
			}
		}
		if len(kept) == 0 {
			delete(p.idle, email)
		} else {
			p.idle[email] = kept
		}
	}
	p.mu.Unlock()

	for _, session := range expired {
		p.log.Debugf("[%s] closing idle session %s", session.Email, session.ID)
		session.Session.Logout()
	}
}
