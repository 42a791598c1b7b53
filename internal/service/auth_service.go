package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"assessd/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const (
	audienceRecruiter = "recruiter"
	audienceCandidate = "candidate"
)

// AuthService resolves request credentials to a recruiter or to the
// candidate subject a token was issued for.
type AuthService struct {
	username     string
	password     string
	jwtSecret    []byte
	candidateTTL time.Duration
	now          func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(secret, username, password string, candidateTTL time.Duration) *AuthService {
	if candidateTTL <= 0 {
		candidateTTL = 72 * time.Hour
	}
	return &AuthService{
		username:     username,
		password:     password,
		jwtSecret:    []byte(secret),
		candidateTTL: candidateTTL,
		now:          time.Now,
	}
}

// Login validates recruiter credentials and returns a 12h token
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if username != s.username || password != s.password {
		return nil, ErrInvalidCredentials
	}

	recruiterID := "rec_" + uuid.New().String()[:8]
	now := s.now()
	claims := &model.RecruiterClaims{
		RecruiterID: recruiterID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceRecruiter},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(12 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token:       tokenString,
		RecruiterID: recruiterID,
	}, nil
}

// ValidateRecruiterToken validates a recruiter JWT and returns claims
func (s *AuthService) ValidateRecruiterToken(tokenString string) (*model.RecruiterClaims, error) {
	claims := &model.RecruiterClaims{}
	if err := s.parse(tokenString, claims, audienceRecruiter); err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueCandidateToken creates a token scoped to subjectRef
func (s *AuthService) IssueCandidateToken(subjectRef string) (*model.CandidateTokenResponse, error) {
	subjectRef = strings.TrimSpace(subjectRef)
	if subjectRef == "" {
		return nil, errors.New("subject reference is required")
	}
	now := s.now()
	expires := now.Add(s.candidateTTL)
	claims := &model.CandidateClaims{
		SubjectRef: subjectRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectRef,
			Audience:  jwt.ClaimStrings{audienceCandidate},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &model.CandidateTokenResponse{
		Token:      tokenString,
		SubjectRef: subjectRef,
		ExpiresAt:  expires.Unix(),
	}, nil
}

// ValidateCandidateToken validates a candidate JWT and returns claims
func (s *AuthService) ValidateCandidateToken(tokenString string) (*model.CandidateClaims, error) {
	claims := &model.CandidateClaims{}
	if err := s.parse(tokenString, claims, audienceCandidate); err != nil {
		return nil, err
	}
	if claims.SubjectRef == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
