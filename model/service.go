// Package model holds the sample services wired by the demo command.
package model

import (
	"fmt"
	"sync/atomic"
)

var sequence atomic.Int64

func nextID(kind string) string {
	return fmt.Sprintf("%s-%d", kind, sequence.Add(1))
}

// IUserRepo user repository (Singleton)
type IUserRepo interface {
	GetUserID() int64
	GetRepoID() string
}

// UserRepo implements IUserRepo and releases its connection on Dispose.
type UserRepo struct {
	DSN    string
	ID     string
	Closed atomic.Bool
}

// NewUserRepo opens the repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{
		DSN: "mysql:127.0.0.1:3306/gofac?charset=utf8",
		ID:  nextID("repo"),
	}
}

func (r *UserRepo) GetUserID() int64  { return 10086 }
func (r *UserRepo) GetRepoID() string { return r.ID }

func (r *UserRepo) Dispose() error {
	r.Closed.Store(true)
	return nil
}

// IUserService user service (Transient)
type IUserService interface {
	GetUserName() string
	GetRepoID() string
}

type UserService struct {
	Repo IUserRepo
	ID   string
}

func NewUserService(repo IUserRepo) *UserService {
	return &UserService{Repo: repo, ID: nextID("service")}
}

func (s *UserService) GetUserName() string { return fmt.Sprintf("user_%d", s.Repo.GetUserID()) }
func (s *UserService) GetRepoID() string   { return s.Repo.GetRepoID() }

// IUserLog per-worker audit log (PerThread)
type IUserLog interface {
	LogUserID() string
	GetLogID() string
}

type UserLog struct {
	Repo IUserRepo
	ID   string
}

func NewUserLog(repo IUserRepo) *UserLog {
	return &UserLog{Repo: repo, ID: nextID("log")}
}

func (l *UserLog) LogUserID() string { return fmt.Sprintf("user_log: user_id=%d", l.Repo.GetUserID()) }
func (l *UserLog) GetLogID() string  { return l.ID }

// Session is an idle-expiring token cache (Singleton with a time to live).
type Session struct {
	Token    string
	Disposed atomic.Bool
}

func NewSession() *Session {
	return &Session{Token: nextID("session")}
}

func (s *Session) Dispose() error {
	s.Disposed.Store(true)
	return nil
}

// Mailer has a rich constructor used when a template store is registered and
// a bare one otherwise.
type Mailer struct {
	Templates *TemplateStore
}

type TemplateStore struct {
	Names []string
}

func NewMailer() *Mailer { return &Mailer{} }

func NewMailerWithTemplates(store *TemplateStore) *Mailer { return &Mailer{Templates: store} }
