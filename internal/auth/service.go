package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/visaforge/backend/internal/models"
	"github.com/visaforge/backend/internal/notification"
	"github.com/visaforge/backend/internal/referral"
)

// Principal roles carried in JWT claims.
const (
	RoleStudent = "student"
	RoleAgent   = "agent"
	RoleAdmin   = "admin"
)

// AdminID is the fixed principal id for the back-office admin, whose
// credentials come from configuration rather than a table.
var AdminID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnknownReferralCode = errors.New("unknown referral code")

	// ErrSelfReferral rejects a registration that names the registrant's own
	// email as referrer. Nobody earns commission on their own budgets.
	ErrSelfReferral = errors.New("cannot use your own referral code")

	// ErrReferralChain rejects referrers who were themselves referred.
	// Referral chains are at most one hop deep, which also rules out cycles.
	ErrReferralChain = errors.New("referrer was referred themselves")
)

// StudentDirectory is the student storage auth needs.
type StudentDirectory interface {
	Create(ctx context.Context, s *models.Student) error
	GetByEmail(ctx context.Context, email string) (*models.Student, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Student, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

// AgentDirectory is the agent storage auth needs.
type AgentDirectory interface {
	Create(ctx context.Context, a *models.Agent) error
	GetByEmail(ctx context.Context, email string) (*models.Agent, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Agent, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

type RegisterStudentInput struct {
	Email        string
	Password     string
	FullName     string
	ReferralCode string // optional: code of the referring student or agent
}

type RegisterAgentInput struct {
	Email    string
	Password string
	Name     string
	Agency   string
}

type Service interface {
	RegisterStudent(ctx context.Context, in RegisterStudentInput) (*models.Student, error)
	RegisterAgent(ctx context.Context, in RegisterAgentInput) (*models.Agent, error)
	Login(ctx context.Context, email, password string) (string, string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
}

type service struct {
	students      StudentDirectory
	agents        AgentDirectory
	notifier      notification.Notifier
	secret        []byte
	adminEmail    string
	adminPassword string
}

func NewService(students StudentDirectory, agents AgentDirectory, notifier notification.Notifier, jwtSecret, adminEmail, adminPassword string) Service {
	if notifier == nil {
		notifier = notification.Noop{}
	}
	return &service{
		students:      students,
		agents:        agents,
		notifier:      notifier,
		secret:        []byte(jwtSecret),
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
	}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *service) RegisterStudent(ctx context.Context, in RegisterStudentInput) (*models.Student, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	st := &models.Student{
		ID:              uuid.New(),
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		FullName:        in.FullName,
		PasswordHash:    string(hash),
		AvailableCredit: decimal.Zero,
		WithdrawnCredit: decimal.Zero,
	}
	if code := strings.TrimSpace(in.ReferralCode); code != "" {
		if err := s.assignReferrer(ctx, st, code); err != nil {
			return nil, err
		}
	}
	if err := s.createStudentWithCode(ctx, st); err != nil {
		return nil, err
	}
	subject, body := notification.Welcome(st.FullName, st.ReferralCode)
	s.notifier.Send(ctx, st.Email, subject, body)
	return st, nil
}

// assignReferrer resolves the referral code against students first, then
// agents. Self-referral and chains deeper than one hop are rejected here,
// at assignment time, so payment-time crediting never has to re-check.
func (s *service) assignReferrer(ctx context.Context, st *models.Student, code string) error {
	referrer, err := s.students.GetByReferralCode(ctx, code)
	switch {
	case err == nil:
		if strings.EqualFold(referrer.Email, st.Email) {
			return ErrSelfReferral
		}
		if referrer.HasReferrer() {
			return ErrReferralChain
		}
		st.ReferredByStudentID = &referrer.ID
		return nil
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}

	agent, err := s.agents.GetByReferralCode(ctx, code)
	switch {
	case err == nil:
		if strings.EqualFold(agent.Email, st.Email) {
			return ErrSelfReferral
		}
		st.ReferredByAgentID = &agent.ID
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrUnknownReferralCode
	}
	return err
}

// createStudentWithCode generates a referral code and inserts, retrying on
// code collisions. The unique index is the source of truth; the pre-check
// in referral.Generate just keeps retries rare.
func (s *service) createStudentWithCode(ctx context.Context, st *models.Student) error {
	for {
		code, err := referral.Generate(ctx, s.students, s.agents)
		if err != nil {
			return err
		}
		st.ReferralCode = code
		err = s.students.Create(ctx, st)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "referral_code") {
				continue
			}
			return ErrDuplicateEmail
		}
		return err
	}
}

func (s *service) RegisterAgent(ctx context.Context, in RegisterAgentInput) (*models.Agent, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a := &models.Agent{
		ID:              uuid.New(),
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Name:            in.Name,
		Agency:          in.Agency,
		PasswordHash:    string(hash),
		AvailableCredit: decimal.Zero,
		WithdrawnCredit: decimal.Zero,
	}
	for {
		code, err := referral.Generate(ctx, s.students, s.agents)
		if err != nil {
			return nil, err
		}
		a.ReferralCode = code
		err = s.agents.Create(ctx, a)
		if err == nil {
			break
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "referral_code") {
				continue
			}
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	subject, body := notification.Welcome(a.Name, a.ReferralCode)
	s.notifier.Send(ctx, a.Email, subject, body)
	return a, nil
}

// Login authenticates against students, then agents, then the configured
// admin credentials. Returns the signed token and the principal's role.
func (s *service) Login(ctx context.Context, email, password string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	st, err := s.students.GetByEmail(ctx, email)
	if err == nil {
		if bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(password)) != nil {
			return "", "", ErrInvalidCredentials
		}
		tok, err := s.issueToken(st.ID, RoleStudent)
		return tok, RoleStudent, err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", "", err
	}

	a, err := s.agents.GetByEmail(ctx, email)
	if err == nil {
		if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
			return "", "", ErrInvalidCredentials
		}
		tok, err := s.issueToken(a.ID, RoleAgent)
		return tok, RoleAgent, err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", "", err
	}

	if s.adminEmail != "" && email == s.adminEmail &&
		subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1 {
		tok, err := s.issueToken(AdminID, RoleAdmin)
		return tok, RoleAdmin, err
	}
	return "", "", ErrInvalidCredentials
}

func (s *service) issueToken(id uuid.UUID, role string) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, c.Role, nil
}
