package faceauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/kozaktomas/uniportal/internal/database/mock"
	"github.com/kozaktomas/uniportal/internal/encoder"
	"github.com/kozaktomas/uniportal/internal/facematch"
)

const testDim = 4

// photo returns a base64 payload of a PNG whose width identifies it to fakeExtractor.
func photo(t *testing.T, width int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// fakeExtractor returns the vector registered for the image width.
type fakeExtractor struct {
	vectors map[int]facematch.Vector
	err     error
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, img []byte) (facematch.Vector, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, err
	}
	v, ok := f.vectors[cfg.Width]
	if !ok {
		return nil, encoder.ErrNoSubject
	}
	return v, nil
}

type fakeIssuer struct {
	issued []uuid.UUID
	err    error
}

func (f *fakeIssuer) IssueSession(ctx context.Context, user *database.User) (string, time.Time, error) {
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	f.issued = append(f.issued, user.ID)
	return "token-" + user.ID.String(), time.Now().Add(15 * time.Minute), nil
}

type fixture struct {
	svc       *Service
	extractor *fakeExtractor
	encodings *mock.MockEncodingStore
	users     *mock.MockUserStore
	issuer    *fakeIssuer
}

func newFixture(policy facematch.Policy, opts Options) *fixture {
	f := &fixture{
		extractor: &fakeExtractor{vectors: make(map[int]facematch.Vector)},
		encodings: mock.NewMockEncodingStore(),
		users:     mock.NewMockUserStore(),
		issuer:    &fakeIssuer{},
	}
	f.svc = NewService(f.extractor, f.encodings, f.users, f.issuer, facematch.NewMatcher(testDim, 0.6, policy), opts)
	return f
}

func TestService_EnrollThenLogin(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	ctx := context.Background()
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)

	f.extractor.vectors[1] = facematch.Vector{0.1, 0.2, 0.3, 0.4}
	f.extractor.vectors[2] = facematch.Vector{0.15, 0.2, 0.3, 0.4}

	enc, err := f.svc.Enroll(ctx, u, uuid.Nil, photo(t, 1))
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if enc.UserID != u.ID {
		t.Errorf("encoding owner = %s, want %s", enc.UserID, u.ID)
	}

	result, err := f.svc.Login(ctx, photo(t, 2))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID != u.ID {
		t.Errorf("logged in user = %s, want %s", result.User.ID, u.ID)
	}
	if result.AccessToken != "token-"+u.ID.String() {
		t.Errorf("AccessToken = %s", result.AccessToken)
	}
	if result.TokenType != "bearer" {
		t.Errorf("TokenType = %s, want bearer", result.TokenType)
	}
	if result.EncodingID != enc.ID {
		t.Errorf("EncodingID = %s, want %s", result.EncodingID, enc.ID)
	}
}

func TestService_LoginAtToleranceIsNotRecognized(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	ctx := context.Background()
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)

	f.extractor.vectors[1] = facematch.Vector{0, 0, 0, 0}
	f.extractor.vectors[2] = facematch.Vector{0.6, 0, 0, 0}

	if _, err := f.svc.Enroll(ctx, u, u.ID, photo(t, 1)); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	_, err := f.svc.Login(ctx, photo(t, 2))
	if !errors.Is(err, ErrFaceNotRecognized) {
		t.Fatalf("Login() error = %v, want ErrFaceNotRecognized", err)
	}
	if len(f.issuer.issued) != 0 {
		t.Error("no session should be issued")
	}
}

func TestService_LoginDisabledAccount(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	ctx := context.Background()
	u := f.users.AddUser("former@uni.edu", database.RoleStudent)
	f.extractor.vectors[1] = facematch.Vector{0.1, 0.1, 0.1, 0.1}

	if _, err := f.svc.Enroll(ctx, u, u.ID, photo(t, 1)); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if err := f.users.SetDisabled(ctx, u.ID, true); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}

	result, err := f.svc.Login(ctx, photo(t, 1))
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("Login() error = %v, want ErrAccountDisabled", err)
	}
	if result != nil {
		t.Error("no result should be returned")
	}
	if len(f.issuer.issued) != 0 {
		t.Error("no session should be issued")
	}
}

func TestService_EnrollNoFaceDetected(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	ctx := context.Background()
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)

	_, err := f.svc.Enroll(ctx, u, u.ID, photo(t, 3))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("Enroll() error = %v, want ErrNoFaceDetected", err)
	}
	if f.encodings.CreateCalls != 0 {
		t.Errorf("Create called %d times, want 0", f.encodings.CreateCalls)
	}
	if n, _ := f.encodings.Count(ctx); n != 0 {
		t.Errorf("stored encodings = %d, want 0", n)
	}
}

func TestService_LoginNoFaceDetected(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})

	_, err := f.svc.Login(context.Background(), photo(t, 3))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("Login() error = %v, want ErrNoFaceDetected", err)
	}
	if errors.Is(err, ErrFaceNotRecognized) {
		t.Error("no face must be distinct from not recognized")
	}
	if f.encodings.ListAllCalls != 0 {
		t.Error("store should not be read when extraction fails")
	}
}

func TestService_InvalidPayload(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)

	tests := []struct {
		name    string
		payload string
	}{
		{"not base64", "data:image/png;base64,@@@"},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Login(context.Background(), tt.payload); !errors.Is(err, ErrImageDecode) {
				t.Errorf("Login() error = %v, want ErrImageDecode", err)
			}
			if _, err := f.svc.Enroll(context.Background(), u, u.ID, tt.payload); !errors.Is(err, ErrImageDecode) {
				t.Errorf("Enroll() error = %v, want ErrImageDecode", err)
			}
		})
	}
	if f.extractor.calls != 0 {
		t.Errorf("extractor called %d times, want 0", f.extractor.calls)
	}
}

func TestService_ExtractorUnavailable(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	f.svc.extractor = encoder.Unavailable{}
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)

	if _, err := f.svc.Login(context.Background(), photo(t, 1)); !errors.Is(err, ErrExtractorUnavailable) {
		t.Errorf("Login() error = %v, want ErrExtractorUnavailable", err)
	}
	if _, err := f.svc.Enroll(context.Background(), u, u.ID, photo(t, 1)); !errors.Is(err, ErrExtractorUnavailable) {
		t.Errorf("Enroll() error = %v, want ErrExtractorUnavailable", err)
	}
}

func TestService_LoginSkipsCorruptEncodings(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	ctx := context.Background()
	broken := f.users.AddUser("broken@uni.edu", database.RoleStudent)
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)

	f.encodings.AddEncoding(broken.ID, "not json")
	f.encodings.AddEncoding(broken.ID, "[0.1, 0.2]")
	f.encodings.AddEncoding(u.ID, "[0.5,0.5,0.5,0.5]")
	f.extractor.vectors[1] = facematch.Vector{0.5, 0.5, 0.5, 0.55}

	var skipped []string
	f.svc.matcher.OnCorrupt = func(key string, err error) { skipped = append(skipped, key) }

	result, err := f.svc.Login(ctx, photo(t, 1))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID != u.ID {
		t.Errorf("logged in user = %s, want %s", result.User.ID, u.ID)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped %d records, want 2", len(skipped))
	}
}

func TestService_MatchPolicies(t *testing.T) {
	tests := []struct {
		policy   facematch.Policy
		wantUser int
	}{
		{facematch.PolicyFirst, 0},
		{facematch.PolicyBest, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := newFixture(tt.policy, Options{})
			users := []*database.User{
				f.users.AddUser("far@uni.edu", database.RoleStudent),
				f.users.AddUser("near@uni.edu", database.RoleStudent),
			}
			f.encodings.AddEncoding(users[0].ID, "[0.4,0,0,0]")
			f.encodings.AddEncoding(users[1].ID, "[0.1,0,0,0]")
			f.extractor.vectors[1] = facematch.Vector{0, 0, 0, 0}

			result, err := f.svc.Login(context.Background(), photo(t, 1))
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if result.User.ID != users[tt.wantUser].ID {
				t.Errorf("logged in %s, want %s", result.User.Email, users[tt.wantUser].Email)
			}
		})
	}
}

func TestService_IndexedLoginUsesPrefilter(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{Indexed: true, IndexSlack: 0.001})
	ctx := context.Background()
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)
	other := f.users.AddUser("other@uni.edu", database.RoleStudent)

	f.extractor.vectors[1] = facematch.Vector{0.9, 0.9, 0.9, 0.9}
	f.extractor.vectors[2] = facematch.Vector{0.1, 0.1, 0.1, 0.1}
	f.extractor.vectors[3] = facematch.Vector{0.1, 0.1, 0.1, 0.2}
	if _, err := f.svc.Enroll(ctx, other, other.ID, photo(t, 1)); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if _, err := f.svc.Enroll(ctx, u, u.ID, photo(t, 2)); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	result, err := f.svc.Login(ctx, photo(t, 3))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID != u.ID {
		t.Errorf("logged in user = %s, want %s", result.User.ID, u.ID)
	}
	if f.encodings.ListNearCalls != 1 || f.encodings.ListAllCalls != 0 {
		t.Errorf("ListNear/ListAll calls = %d/%d, want 1/0", f.encodings.ListNearCalls, f.encodings.ListAllCalls)
	}
}

func TestService_StoreFailureIsOperationError(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	cause := errors.New("connection reset")
	f.encodings.ListAllError = cause
	f.extractor.vectors[1] = facematch.Vector{0, 0, 0, 0}

	_, err := f.svc.Login(context.Background(), photo(t, 1))

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("Login() error = %v, want *OperationError", err)
	}
	if opErr.Op != "login" {
		t.Errorf("Op = %s, want login", opErr.Op)
	}
	if !errors.Is(err, cause) {
		t.Error("OperationError should unwrap to the cause")
	}
}

func TestService_EnrollStoreFailureLeavesNothing(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)
	f.encodings.CreateError = errors.New("disk full")
	f.extractor.vectors[1] = facematch.Vector{0, 0, 0, 0}

	_, err := f.svc.Enroll(context.Background(), u, u.ID, photo(t, 1))

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("Enroll() error = %v, want *OperationError", err)
	}
	if n, _ := f.encodings.Count(context.Background()); n != 0 {
		t.Errorf("stored encodings = %d, want 0", n)
	}
}

func TestService_ExtractorDimensionMismatch(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	f.extractor.err = fmt.Errorf("%w: got 512 values", facematch.ErrDimensionMismatch)

	_, err := f.svc.Login(context.Background(), photo(t, 1))
	if !errors.Is(err, facematch.ErrDimensionMismatch) {
		t.Fatalf("Login() error = %v, want ErrDimensionMismatch", err)
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		t.Error("dimension mismatch should not be wrapped as an operation failure")
	}
}

func TestService_IssueSessionFailure(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	u := f.users.AddUser("student@uni.edu", database.RoleStudent)
	f.encodings.AddEncoding(u.ID, "[0,0,0,0]")
	f.extractor.vectors[1] = facematch.Vector{0, 0, 0, 0}
	f.issuer.err = errors.New("session store down")

	_, err := f.svc.Login(context.Background(), photo(t, 1))
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("Login() error = %v, want *OperationError", err)
	}
}

func TestService_EnrollAuthorization(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	ctx := context.Background()
	student := f.users.AddUser("student@uni.edu", database.RoleStudent)
	other := f.users.AddUser("other@uni.edu", database.RoleStudent)
	admin := f.users.AddUser("admin@uni.edu", database.RoleAdmin)
	f.extractor.vectors[1] = facematch.Vector{0, 0, 0, 0}

	tests := []struct {
		name    string
		actor   *database.User
		target  uuid.UUID
		wantErr error
	}{
		{"self", student, student.ID, nil},
		{"self implicit", student, uuid.Nil, nil},
		{"student for other", student, other.ID, ErrForbidden},
		{"admin for other", admin, other.ID, nil},
		{"admin for unknown user", admin, uuid.New(), ErrUserNotFound},
		{"no actor", nil, other.ID, ErrForbidden},
		{"system actor", SystemActor, other.ID, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := f.svc.Enroll(ctx, tt.actor, tt.target, photo(t, 1))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Enroll() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && tt.target != uuid.Nil && enc.UserID != tt.target {
				t.Errorf("encoding owner = %s, want %s", enc.UserID, tt.target)
			}
		})
	}
}

func TestService_ListEncodings(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	ctx := context.Background()
	student := f.users.AddUser("student@uni.edu", database.RoleStudent)
	other := f.users.AddUser("other@uni.edu", database.RoleStudent)
	admin := f.users.AddUser("admin@uni.edu", database.RoleAdmin)
	f.encodings.AddEncoding(student.ID, "[0,0,0,0]")
	f.encodings.AddEncoding(student.ID, "[1,0,0,0]")
	f.encodings.AddEncoding(other.ID, "[0,1,0,0]")

	own, err := f.svc.ListEncodings(ctx, student, uuid.Nil)
	if err != nil {
		t.Fatalf("ListEncodings() error = %v", err)
	}
	if len(own) != 2 {
		t.Errorf("own encodings = %d, want 2", len(own))
	}

	if _, err := f.svc.ListEncodings(ctx, student, other.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("ListEncodings() for other error = %v, want ErrForbidden", err)
	}

	byAdmin, err := f.svc.ListEncodings(ctx, admin, other.ID)
	if err != nil {
		t.Fatalf("ListEncodings() as admin error = %v", err)
	}
	if len(byAdmin) != 1 {
		t.Errorf("other's encodings = %d, want 1", len(byAdmin))
	}
}

func TestService_DeleteEncoding(t *testing.T) {
	f := newFixture(facematch.PolicyFirst, Options{})
	ctx := context.Background()
	student := f.users.AddUser("student@uni.edu", database.RoleStudent)
	other := f.users.AddUser("other@uni.edu", database.RoleStudent)
	admin := f.users.AddUser("admin@uni.edu", database.RoleAdmin)
	own := f.encodings.AddEncoding(student.ID, "[0,0,0,0]")
	foreign := f.encodings.AddEncoding(other.ID, "[0,1,0,0]")

	if err := f.svc.DeleteEncoding(ctx, student, foreign.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("delete foreign error = %v, want ErrForbidden", err)
	}
	if err := f.svc.DeleteEncoding(ctx, student, own.ID); err != nil {
		t.Errorf("delete own error = %v", err)
	}
	if err := f.svc.DeleteEncoding(ctx, student, own.ID); !errors.Is(err, ErrEncodingNotFound) {
		t.Errorf("delete twice error = %v, want ErrEncodingNotFound", err)
	}
	if err := f.svc.DeleteEncoding(ctx, admin, foreign.ID); err != nil {
		t.Errorf("admin delete error = %v", err)
	}
	if n, _ := f.encodings.Count(ctx); n != 0 {
		t.Errorf("remaining encodings = %d, want 0", n)
	}
}

func TestOperationError(t *testing.T) {
	cause := errors.New("boom")
	err := wrapOp("enroll", cause)

	if err.Error() != "face operation failed: enroll: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if wrapOp("enroll", err) != err {
		t.Error("wrapping twice should keep the original OperationError")
	}
	if wrapOp("enroll", ErrForbidden) != ErrForbidden {
		t.Error("known errors should pass through unchanged")
	}
	if wrapOp("enroll", nil) != nil {
		t.Error("nil should stay nil")
	}
}
