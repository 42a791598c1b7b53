package model

import "github.com/golang-jwt/jwt/v5"

// RecruiterClaims are JWT claims for recruiter access
type RecruiterClaims struct {
	RecruiterID string `json:"recruiterId"`
	jwt.RegisteredClaims
}

// CandidateClaims bind a token to the subject whose sessions it may use
type CandidateClaims struct {
	SubjectRef string `json:"subjectRef"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for recruiter login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token       string `json:"token"`
	RecruiterID string `json:"recruiterId"`
}

// CandidateTokenResponse is returned when a recruiter invites a candidate
type CandidateTokenResponse struct {
	Token      string `json:"token"`
	SubjectRef string `json:"subjectRef"`
	ExpiresAt  int64  `json:"expiresAt"`
}
