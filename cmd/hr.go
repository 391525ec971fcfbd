package cmd

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/agent"
	"github.com/fmuoria/agent-studio/internal/export"
	"github.com/fmuoria/agent-studio/internal/ingestion"
	"github.com/fmuoria/agent-studio/internal/models"
	"github.com/fmuoria/agent-studio/internal/session"
)

// follow-up actions offered after a batch
const (
	promptQuestions = "Interview questions for the top candidate"
	promptChat      = "Ask about the candidates"
	promptSchedule  = "Schedule an interview"
	promptExport    = "Export to Excel"
	promptExit      = "Exit"
)

var errExit = errors.New("exit requested")

var hrCmd = &cobra.Command{
	Use:   "hr",
	Short: "CV screening, CV optimization and job offers",
}

var hrBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Screen a ZIP of PDF CVs (or Gmail attachments) against a job",
	RunE:  runBatch,
}

var hrOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Suggest improvements for a single CV",
	RunE:  runOptimize,
}

var hrOfferCmd = &cobra.Command{
	Use:   "offer",
	Short: "Write a job offer and optionally a LinkedIn post",
	RunE:  runOffer,
}

func init() {
	rootCmd.AddCommand(hrCmd)
	hrCmd.AddCommand(hrBatchCmd, hrOptimizeCmd, hrOfferCmd)

	f := hrBatchCmd.Flags()
	f.StringP("bundle", "b", "", "ZIP archive with the CVs as PDF files")
	f.String("gmail-subject", "", "fetch PDF attachments of Gmail messages with this subject instead of a bundle")
	f.String("job", "", "job description (required)")
	f.String("skills", "", "required skills")
	f.Int("min-years", 0, "minimum years of experience")
	f.String("location", "", "job location")
	f.Bool("team", false, "use the two-analyst team instead of a single analyst")
	f.StringP("output", "o", "", "write the results to this xlsx file")
	f.BoolP("interactive", "i", false, "open the follow-up menu after the analysis")

	f = hrOptimizeCmd.Flags()
	f.String("cv", "", "CV file (PDF or TXT)")
	f.String("role", "", "target role")

	f = hrOfferCmd.Flags()
	f.String("title", "", "position title")
	f.String("company", "", "company name")
	f.String("description", "", "position description")
	f.String("location", "", "location")
	f.String("salary", "", "salary range")
	f.String("modality", agent.ModalityOnSite, "On-site, Remote or Hybrid")
	f.Bool("linkedin", false, "also write a LinkedIn post for the offer")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	f := cmd.Flags()
	bundlePath, _ := f.GetString("bundle")
	subject, _ := f.GetString("gmail-subject")
	team, _ := f.GetBool("team")
	job := models.JobRequirements{}
	job.Description, _ = f.GetString("job")
	job.Skills, _ = f.GetString("skills")
	job.MinYears, _ = f.GetInt("min-years")
	job.Location, _ = f.GetString("location")

	if (bundlePath == "") == (subject == "") {
		return fmt.Errorf("exactly one of --bundle or --gmail-subject is required")
	}

	cv := agent.NewCVReviewAgent(rt.catalog, rt.invoker, agent.OptionsFromConfig(rt.cfg.HR), rt.log)
	cv.SetProgressCallback(func(current, total int, message string) {
		rt.log.Info(message, zap.Int("progress", current), zap.Int("total", total))
	})
	sess := session.New()

	var outcome agent.BatchOutcome
	if subject != "" {
		gh, err := ingestion.NewGmailHandler(ctx, ingestion.GmailOptions{
			CredentialsFile: rt.cfg.Gmail.CredentialsFile,
			TokenFile:       rt.cfg.Gmail.TokenFile,
			MaxEntryBytes:   rt.cfg.HR.MaxEntryBytes,
			In:              cmd.InOrStdin(),
			Out:             cmd.ErrOrStderr(),
		}, rt.log)
		if err != nil {
			return err
		}
		cv.SetGmailHandler(gh)
		outcome, err = cv.AnalyzeGmail(ctx, sess, subject, job, team)
		if err != nil {
			return batchError(cmd.ErrOrStderr(), outcome, err)
		}
	} else {
		zr, err := zip.OpenReader(bundlePath)
		if err != nil {
			return fmt.Errorf("opening bundle: %w", err)
		}
		defer zr.Close()
		outcome, err = cv.AnalyzeArchive(ctx, sess, &zr.Reader, job, team)
		if err != nil {
			return batchError(cmd.ErrOrStderr(), outcome, err)
		}
	}

	out := cmd.OutOrStdout()
	printBatch(out, outcome.Response(time.Now()))

	if path, _ := f.GetString("output"); path != "" {
		if err := exportSession(out, sess, path); err != nil {
			return err
		}
	}

	if interactive, _ := f.GetBool("interactive"); interactive {
		return followUps(ctx, out, cv, sess, rt.log)
	}
	return nil
}

func batchError(w io.Writer, outcome agent.BatchOutcome, err error) error {
	for _, s := range outcome.Skipped {
		fmt.Fprintln(w, "skipped:", s)
	}
	return err
}

func printBatch(w io.Writer, resp models.BatchResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCORE\tSKILLS\tEDUCATION\tRECOMMENDATION")
	for _, row := range resp.Candidates {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", row.Name, row.Score, row.Skills, row.Education, row.Recommendation)
	}
	tw.Flush()

	for _, s := range resp.Skipped {
		fmt.Fprintln(w, "skipped:", s)
	}
	if resp.Fallback {
		fmt.Fprintln(w, "\nThe agent reply could not be read; the candidates above are placeholders. Raw reply:")
		fmt.Fprintln(w, resp.Raw)
	}
}

func exportSession(w io.Writer, sess *session.Session, path string) error {
	_, fallback := sess.Raw()
	written, err := export.ExportToExcel(export.Report{
		Job:        sess.Job(),
		Batch:      sess.Batch(),
		Interviews: sess.Interviews(),
		Fallback:   fallback,
	}, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Results written to", written)
	return nil
}

// followUps runs the interactive menu until the user exits
func followUps(ctx context.Context, w io.Writer, cv *agent.CVReviewAgent, sess *session.Session, log *zap.Logger) error {
	menu := promptui.Select{
		Label: "What next?",
		Items: []string{promptQuestions, promptChat, promptSchedule, promptExport, promptExit},
	}
	for {
		_, action, err := menu.Run()
		if err != nil {
			return err
		}
		if err := handleAction(ctx, w, action, cv, sess); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			if errors.Is(err, promptui.ErrInterrupt) {
				return err
			}
			log.Error("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, w io.Writer, action string, cv *agent.CVReviewAgent, sess *session.Session) error {
	switch action {
	case promptQuestions:
		top, questions, err := cv.InterviewQuestions(ctx, sess)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Questions for %s:\n%s\n", top.Name, questions)
		return nil
	case promptChat:
		q := promptui.Prompt{Label: "Question"}
		question, err := q.Run()
		if err != nil {
			return err
		}
		answer, err := cv.Ask(ctx, sess, question)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, answer)
		return nil
	case promptSchedule:
		pick := promptui.Select{Label: "Candidate", Items: sess.Batch().Names()}
		_, name, err := pick.Run()
		if err != nil {
			return err
		}
		dateInput := promptui.Prompt{
			Label:   "Date (YYYY-MM-DD, empty for today)",
			Default: time.Now().Format(agent.DateLayout),
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return nil
				}
				_, err := time.Parse(agent.DateLayout, strings.TrimSpace(s))
				return err
			},
		}
		date, err := dateInput.Run()
		if err != nil {
			return err
		}
		booking, err := cv.ScheduleInterview(sess, name, date)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Interview with %s on %s\n", booking.CandidateName, booking.Date)
		return nil
	case promptExport:
		pathInput := promptui.Prompt{Label: "File", Default: "cv-screening.xlsx"}
		path, err := pathInput.Run()
		if err != nil {
			return err
		}
		return exportSession(w, sess, path)
	case promptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("cv")
	role, _ := cmd.Flags().GetString("role")
	if path == "" {
		return fmt.Errorf("--cv is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading cv: %w", err)
	}

	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	cv := agent.NewCVReviewAgent(rt.catalog, rt.invoker, agent.OptionsFromConfig(rt.cfg.HR), rt.log)
	answer, err := cv.OptimizeCV(cmd.Context(), path, data, role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func runOffer(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	req := agent.OfferRequest{}
	req.Title, _ = f.GetString("title")
	req.Company, _ = f.GetString("company")
	req.Description, _ = f.GetString("description")
	req.Location, _ = f.GetString("location")
	req.Salary, _ = f.GetString("salary")
	req.Modality, _ = f.GetString("modality")
	if err := req.Validate(); err != nil {
		return err
	}

	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	cv := agent.NewCVReviewAgent(rt.catalog, rt.invoker, agent.OptionsFromConfig(rt.cfg.HR), rt.log)
	offer, err := cv.GenerateOffer(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, offer)

	if linkedin, _ := f.GetBool("linkedin"); linkedin {
		post, err := cv.LinkedInPost(cmd.Context(), offer, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\n--- LinkedIn ---")
		fmt.Fprintln(out, post)
	}
	return nil
}
