// Package faceauth implements face enrollment and face login on top of the
// extractor, the matcher and the encoding store.
package faceauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/kozaktomas/uniportal/internal/encoder"
	"github.com/kozaktomas/uniportal/internal/facematch"
)

// TokenType is reported alongside issued access tokens.
const TokenType = "bearer"

// SessionIssuer creates a session credential for a verified user.
type SessionIssuer interface {
	IssueSession(ctx context.Context, user *database.User) (token string, expiresAt time.Time, err error)
}

// SystemActor is the actor used by operator tooling. It has administrator rights.
var SystemActor = &database.User{FullName: "system", Role: database.RoleAdmin}

// MatchResult identifies the enrolled encoding a probe matched.
type MatchResult struct {
	User       *database.User
	EncodingID uuid.UUID
	Distance   float64
}

// LoginResult is returned by a successful face login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        *database.User
	EncodingID  uuid.UUID
	Distance    float64
}

// Options tune candidate retrieval for login.
type Options struct {
	// Indexed prefilters candidates with the pgvector mirror instead of
	// reading every stored encoding.
	Indexed bool
	// IndexSlack widens the prefilter radius to absorb float32 rounding.
	IndexSlack float64
}

// Service runs the enrollment and login flows.
type Service struct {
	extractor encoder.Extractor
	encodings database.EncodingWriter
	users     database.UserReader
	sessions  SessionIssuer
	matcher   *facematch.Matcher
	opts      Options
}

// NewService creates a face authentication service. Corrupt encodings met
// during identification are logged unless the matcher already has a hook.
func NewService(
	extractor encoder.Extractor,
	encodings database.EncodingWriter,
	users database.UserReader,
	sessions SessionIssuer,
	matcher *facematch.Matcher,
	opts Options,
) *Service {
	if matcher.OnCorrupt == nil {
		matcher.OnCorrupt = func(key string, err error) {
			log.Printf("warning: skipping face encoding %s: %v", key, err)
		}
	}
	return &Service{
		extractor: extractor,
		encodings: encodings,
		users:     users,
		sessions:  sessions,
		matcher:   matcher,
		opts:      opts,
	}
}

// Available reports whether a real extractor is configured.
func (s *Service) Available() bool {
	_, off := s.extractor.(encoder.Unavailable)
	return !off
}

// Enroll stores a new face encoding for target. A nil target enrolls the actor.
// Nothing is written unless extraction and serialization succeed.
func (s *Service) Enroll(ctx context.Context, actor *database.User, target uuid.UUID, payload string) (*database.StoredEncoding, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if target == uuid.Nil {
		target = actor.ID
	}
	if err := authorize(actor, target); err != nil {
		return nil, err
	}
	if target != actor.ID {
		if _, err := s.users.GetUser(ctx, target); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, wrapOp("enroll", fmt.Errorf("load user: %w", err))
		}
	}

	vector, err := s.extract(ctx, payload)
	if err != nil {
		return nil, wrapOp("enroll", err)
	}

	text, err := s.matcher.Codec.Serialize(vector)
	if err != nil {
		return nil, wrapOp("enroll", fmt.Errorf("serialize: %w", err))
	}

	enc := &database.StoredEncoding{UserID: target, Encoding: text}
	if err := s.encodings.Create(ctx, enc, vector); err != nil {
		return nil, wrapOp("enroll", fmt.Errorf("store encoding: %w", err))
	}

	log.Printf("Enrolled face encoding %s for user %s", enc.ID, target)
	return enc, nil
}

// Login identifies the face in payload among all enrolled encodings and
// issues a session for the matched user.
func (s *Service) Login(ctx context.Context, payload string) (*LoginResult, error) {
	match, err := s.identifyPayload(ctx, "login", payload)
	if err != nil {
		return nil, err
	}
	if match.User.Disabled {
		log.Printf("Face login rejected for disabled user %s", match.User.ID)
		return nil, ErrAccountDisabled
	}

	token, expiresAt, err := s.sessions.IssueSession(ctx, match.User)
	if err != nil {
		return nil, wrapOp("login", fmt.Errorf("issue session: %w", err))
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresAt:   expiresAt,
		User:        match.User,
		EncodingID:  match.EncodingID,
		Distance:    match.Distance,
	}, nil
}

// Identify extracts the face in payload and returns the enrolled encoding it
// matches. It fails with ErrFaceNotRecognized when nothing is within tolerance.
func (s *Service) Identify(ctx context.Context, payload string) (*MatchResult, error) {
	return s.identifyPayload(ctx, "identify", payload)
}

func (s *Service) identifyPayload(ctx context.Context, op, payload string) (*MatchResult, error) {
	probe, err := s.extract(ctx, payload)
	if err != nil {
		return nil, wrapOp(op, err)
	}

	result, err := s.identify(ctx, probe)
	if err != nil {
		return nil, wrapOp(op, err)
	}
	if result == nil {
		return nil, ErrFaceNotRecognized
	}
	return result, nil
}

// ListEncodings returns the encodings of target. A nil target lists the actor's own.
func (s *Service) ListEncodings(ctx context.Context, actor *database.User, target uuid.UUID) ([]database.StoredEncoding, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if target == uuid.Nil {
		target = actor.ID
	}
	if err := authorize(actor, target); err != nil {
		return nil, err
	}
	encs, err := s.encodings.ListByUser(ctx, target)
	if err != nil {
		return nil, wrapOp("list", err)
	}
	return encs, nil
}

// DeleteEncoding removes an encoding owned by the actor, or any encoding for administrators.
func (s *Service) DeleteEncoding(ctx context.Context, actor *database.User, id uuid.UUID) error {
	enc, err := s.encodings.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return ErrEncodingNotFound
	}
	if err != nil {
		return wrapOp("delete", err)
	}
	if err := authorize(actor, enc.UserID); err != nil {
		return err
	}

	if err := s.encodings.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrEncodingNotFound
		}
		return wrapOp("delete", err)
	}

	log.Printf("Deleted face encoding %s of user %s", id, enc.UserID)
	return nil
}

// extract decodes the payload and computes its descriptor. No store access
// happens here, so no connection is held while the extractor runs.
func (s *Service) extract(ctx context.Context, payload string) (facematch.Vector, error) {
	image, err := encoder.DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, image)
}

// identify fetches candidates and runs the matcher. It returns nil when no
// candidate qualifies.
func (s *Service) identify(ctx context.Context, probe facematch.Vector) (*MatchResult, error) {
	var (
		encs []database.StoredEncoding
		err  error
	)
	if s.opts.Indexed {
		encs, err = s.encodings.ListNear(ctx, probe, s.matcher.Tolerance+s.opts.IndexSlack)
	} else {
		encs, err = s.encodings.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load encodings: %w", err)
	}

	candidates := make([]facematch.Candidate, len(encs))
	for i, enc := range encs {
		candidates[i] = facematch.Candidate{Key: enc.ID.String(), Encoding: enc.Encoding}
	}

	match, err := s.matcher.Identify(probe, candidates)
	if err != nil {
		return nil, err
	}
	if !match.Found {
		return nil, nil
	}

	enc := encs[match.Index]
	user, err := s.users.GetUser(ctx, enc.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user of encoding %s: %w", enc.ID, err)
	}

	return &MatchResult{User: user, EncodingID: enc.ID, Distance: match.Distance}, nil
}

// authorize allows actors to manage their own encodings and administrators to manage anyone's.
func authorize(actor *database.User, owner uuid.UUID) error {
	if actor == nil {
		return ErrForbidden
	}
	if actor.ID == owner || actor.IsAdmin() {
		return nil
	}
	return ErrForbidden
}
