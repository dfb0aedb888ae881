package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/output"
)

var formCmd = &cobra.Command{
	Use:     "form",
	Short:   "Dispatch form submissions",
	GroupID: "actions",
}

var (
	formEmail   string
	formName    string
	formMessage string
	formSubject string
	formRating  int
	formComment string
)

// addContactFlags registers the shared contact fields on a flag set.
func addContactFlags(fs *pflag.FlagSet) {
	fs.StringVar(&formEmail, "email", "", "sender email address")
	fs.StringVar(&formName, "name", "", "sender name")
	fs.StringVar(&formMessage, "message", "", "message body")
}

// runForm builds a RunE dispatching one form kind with the given fields.
func runForm(kind models.Kind, build func(args []string) models.FormPayload) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		return reportResult(s.Dispatcher.SubmitForm(kind, build(args)))
	}
}

var formContactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Submit a contact form",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if formEmail == "" || formMessage == "" {
			return fmt.Errorf("--email and --message are required")
		}
		return nil
	},
	RunE: runForm(models.KindContactForm, func([]string) models.FormPayload {
		return models.FormPayload{
			Email: formEmail,
			Fields: map[string]string{
				"name":    formName,
				"message": formMessage,
			},
		}
	}),
}

var formNewsletterCmd = &cobra.Command{
	Use:   "newsletter <email>",
	Short: "Submit a newsletter signup",
	Args:  cobra.ExactArgs(1),
	RunE: runForm(models.KindNewsletter, func(args []string) models.FormPayload {
		return models.FormPayload{Email: args[0]}
	}),
}

var formReviewCmd = &cobra.Command{
	Use:   "review <product-id>",
	Short: "Submit a product review",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if formRating < 1 || formRating > 5 {
			return fmt.Errorf("--rating must be between 1 and 5")
		}
		return nil
	},
	RunE: runForm(models.KindReview, func(args []string) models.FormPayload {
		return models.FormPayload{
			Email: formEmail,
			Fields: map[string]string{
				"product_id": args[0],
				"rating":     fmt.Sprintf("%d", formRating),
				"comment":    formComment,
			},
		}
	}),
}

var formSupportCmd = &cobra.Command{
	Use:   "support",
	Short: "Submit a support request",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if formEmail == "" || formSubject == "" {
			return fmt.Errorf("--email and --subject are required")
		}
		return nil
	},
	RunE: runForm(models.KindSupport, func([]string) models.FormPayload {
		return models.FormPayload{
			Email: formEmail,
			Fields: map[string]string{
				"subject": formSubject,
				"message": formMessage,
			},
		}
	}),
}

func init() {
	addContactFlags(formContactCmd.Flags())
	addContactFlags(formSupportCmd.Flags())
	formSupportCmd.Flags().StringVar(&formSubject, "subject", "", "request subject")
	formReviewCmd.Flags().IntVar(&formRating, "rating", 0, "star rating (1-5)")
	formReviewCmd.Flags().StringVar(&formComment, "comment", "", "review text")
	formReviewCmd.Flags().StringVar(&formEmail, "email", "", "reviewer email address")

	formCmd.AddCommand(formContactCmd, formNewsletterCmd, formReviewCmd, formSupportCmd)
	rootCmd.AddCommand(formCmd)
}
