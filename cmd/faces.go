package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/uniportal/internal/config"
	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/kozaktomas/uniportal/internal/faceauth"
	"github.com/kozaktomas/uniportal/internal/facematch"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage enrolled face encodings",
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored face encodings",
	RunE:  runFacesList,
}

var facesDeleteCmd = &cobra.Command{
	Use:   "delete <encoding-id>",
	Short: "Delete a face encoding",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesDelete,
}

var facesEnrollCmd = &cobra.Command{
	Use:   "enroll <image>",
	Short: "Enroll a face for a user from an image file",
	Long: `Compute a face descriptor for an image with the embedding server and
store it for the given user.

Examples:
  uniportal faces enroll --user jan@uni.edu portrait.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runFacesEnroll,
}

var facesIdentifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Show which user an image would log in as",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesIdentify,
}

var facesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Find stored encodings that no longer decode",
	Long: `Scan every stored face encoding and report the ones that do not decode
into a descriptor of FACE_DIM numbers. Such records are skipped during login.

Also reports encodings whose pgvector copy no longer equals the decoded text.
Indexed search (FACE_SEARCH_MODE=index) prefilters on that copy, so a stale
copy can hide a match. --repair rewrites it from the text.

Examples:
  # Report only
  uniportal faces check

  # Remove broken records and rebuild stale vector copies
  uniportal faces check --delete --repair`,
	RunE: runFacesCheck,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesListCmd, facesDeleteCmd, facesEnrollCmd, facesIdentifyCmd, facesCheckCmd)

	facesListCmd.Flags().String("user", "", "Only list encodings of this email")
	facesListCmd.Flags().Bool("json", false, "Output as JSON")

	facesEnrollCmd.Flags().String("user", "", "Email of the account to enroll (required)")
	_ = facesEnrollCmd.MarkFlagRequired("user")

	facesIdentifyCmd.Flags().Float64("tolerance", 0, "Override FACE_TOLERANCE for this lookup")

	facesCheckCmd.Flags().Bool("delete", false, "Delete encodings that fail to decode")
	facesCheckCmd.Flags().Bool("repair", false, "Rewrite stale pgvector copies from the text encoding")
	facesCheckCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// encodingOutput is the CLI view of a stored encoding.
type encodingOutput struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

func runFacesList(cmd *cobra.Command, args []string) error {
	email := mustGetString(cmd, "user")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	encodings, err := database.GetEncodingReader(ctx)
	if err != nil {
		return err
	}

	var encs []database.StoredEncoding
	if email != "" {
		users, err := database.GetUserReader(ctx)
		if err != nil {
			return err
		}
		user, err := users.GetUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("looking up %s: %w", email, err)
		}
		encs, err = encodings.ListByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("listing encodings: %w", err)
		}
	} else {
		encs, err = encodings.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("listing encodings: %w", err)
		}
	}

	out := make([]encodingOutput, 0, len(encs))
	for _, enc := range encs {
		out = append(out, encodingOutput{
			ID:        enc.ID.String(),
			UserID:    enc.UserID.String(),
			CreatedAt: enc.CreatedAt.Format(time.RFC3339),
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, o := range out {
		fmt.Printf("%s  user=%s  created=%s\n", o.ID, o.UserID, o.CreatedAt)
	}
	fmt.Printf("%d encoding(s)\n", len(out))
	return nil
}

func runFacesDelete(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid encoding id %q", args[0])
	}

	cfg := config.Load()
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	encodings, err := database.GetEncodingWriter(ctx)
	if err != nil {
		return err
	}
	if err := encodings.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("face encoding %s not found", id)
		}
		return fmt.Errorf("deleting encoding: %w", err)
	}

	fmt.Printf("Deleted face encoding %s\n", id)
	return nil
}

func runFacesEnroll(cmd *cobra.Command, args []string) error {
	email := mustGetString(cmd, "user")
	payload, err := readImagePayload(args[0])
	if err != nil {
		return err
	}

	cfg := config.Load()
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	users, err := database.GetUserReader(ctx)
	if err != nil {
		return err
	}
	user, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", email, err)
	}

	svc, err := newFaceService(ctx, cfg, nil)
	if err != nil {
		return err
	}
	enc, err := svc.Enroll(ctx, faceauth.SystemActor, user.ID, payload)
	if err != nil {
		return fmt.Errorf("enrolling face: %w", err)
	}

	fmt.Printf("Enrolled face encoding %s for %s\n", enc.ID, user.Email)
	return nil
}

func runFacesIdentify(cmd *cobra.Command, args []string) error {
	payload, err := readImagePayload(args[0])
	if err != nil {
		return err
	}

	cfg := config.Load()
	if tol := mustGetFloat64(cmd, "tolerance"); tol > 0 {
		cfg.Face.Tolerance = tol
	}
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	svc, err := newFaceService(ctx, cfg, nil)
	if err != nil {
		return err
	}

	match, err := svc.Identify(ctx, payload)
	if errors.Is(err, faceauth.ErrFaceNotRecognized) {
		fmt.Println("No enrolled face matches this image")
		return nil
	}
	if err != nil {
		return fmt.Errorf("identifying face: %w", err)
	}

	status := "active"
	if match.User.Disabled {
		status = "disabled"
	}
	fmt.Printf("Matched %s (%s, %s)\n", match.User.Email, match.User.ID, status)
	fmt.Printf("  Encoding: %s\n", match.EncodingID)
	fmt.Printf("  Distance: %.4f (tolerance %.2f)\n", match.Distance, cfg.Face.Tolerance)
	return nil
}

// CheckResult summarizes a faces check run
type CheckResult struct {
	Scanned  int      `json:"scanned"`
	Corrupt  []string `json:"corrupt"`
	Deleted  int      `json:"deleted"`
	Stale    []string `json:"stale_mirrors"`
	Repaired int      `json:"repaired"`
}

func runFacesCheck(cmd *cobra.Command, args []string) error {
	deleteCorrupt := mustGetBool(cmd, "delete")
	repair := mustGetBool(cmd, "repair")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	encodings, err := database.GetEncodingWriter(ctx)
	if err != nil {
		return err
	}
	encs, err := encodings.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing encodings: %w", err)
	}

	mirrorStore, hasMirrors := encodings.(database.EncodingMirror)
	var mirrors map[uuid.UUID][]float64
	if hasMirrors {
		mirrors, err = mirrorStore.ListMirrors(ctx)
		if err != nil {
			return fmt.Errorf("listing vector copies: %w", err)
		}
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(encs),
			progressbar.OptionSetDescription("Checking encodings"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("encodings"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	codec := facematch.NewCodec(cfg.Face.Dim)
	result := checkEncodings(encs, codec, mirrors, func() {
		if bar != nil {
			bar.Add(1)
		}
	})
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	if deleteCorrupt {
		for _, id := range result.Corrupt {
			if err := encodings.Delete(ctx, uuid.MustParse(id)); err != nil && !errors.Is(err, database.ErrNotFound) {
				fmt.Printf("Warning: failed to delete %s: %v\n", id, err)
				continue
			}
			result.Deleted++
		}
	}

	if repair && hasMirrors {
		result.Repaired = repairMirrors(ctx, mirrorStore, encs, codec, result.Stale)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, id := range result.Corrupt {
		fmt.Printf("Corrupt encoding: %s\n", id)
	}
	for _, id := range result.Stale {
		fmt.Printf("Stale vector copy: %s\n", id)
	}
	fmt.Printf("Scanned %d encodings, %d corrupt, %d deleted, %d stale, %d repaired\n",
		result.Scanned, len(result.Corrupt), result.Deleted, len(result.Stale), result.Repaired)
	return nil
}

// checkEncodings returns the ids of encodings that do not decode with codec,
// and of decodable encodings whose entry in mirrors differs from the text.
// Encodings without a mirror entry are not stale: ListNear always returns them.
func checkEncodings(
	encs []database.StoredEncoding, codec facematch.Codec, mirrors map[uuid.UUID][]float64, progress func(),
) CheckResult {
	result := CheckResult{Corrupt: []string{}, Stale: []string{}}
	for _, enc := range encs {
		v, err := codec.Deserialize(enc.Encoding)
		switch {
		case err != nil:
			result.Corrupt = append(result.Corrupt, enc.ID.String())
		case mirrors[enc.ID] != nil && !mirrorMatches(v, mirrors[enc.ID]):
			result.Stale = append(result.Stale, enc.ID.String())
		}
		result.Scanned++
		progress()
	}
	return result
}

// mirrorMatches compares at float32 precision, the precision pgvector stores.
func mirrorMatches(v facematch.Vector, mirror []float64) bool {
	if len(v) != len(mirror) {
		return false
	}
	for i := range v {
		if float32(v[i]) != float32(mirror[i]) {
			return false
		}
	}
	return true
}

// repairMirrors rewrites the vector copy of each stale encoding from its text
// and returns how many were rewritten.
func repairMirrors(
	ctx context.Context, store database.EncodingMirror, encs []database.StoredEncoding,
	codec facematch.Codec, stale []string,
) int {
	byID := make(map[string]database.StoredEncoding, len(encs))
	for _, enc := range encs {
		byID[enc.ID.String()] = enc
	}

	repaired := 0
	for _, id := range stale {
		enc, ok := byID[id]
		if !ok {
			continue
		}
		v, err := codec.Deserialize(enc.Encoding)
		if err != nil {
			continue
		}
		if err := store.SetMirror(ctx, enc.ID, v); err != nil {
			fmt.Printf("Warning: failed to repair %s: %v\n", id, err)
			continue
		}
		repaired++
	}
	return repaired
}
