package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/hrbot/pkg/models"
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Manage HR staff accounts for the review API",
}

var (
	staffName     string
	staffEmail    string
	staffPassword string
)

var staffAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a staff account",
	RunE: func(cmd *cobra.Command, args []string) error {
		password := staffPassword
		if password == "" {
			password = os.Getenv("HRBOT_STAFF_PASSWORD")
		}
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		s, err := newStaff(staffName, staffEmail, password)
		if err != nil {
			return err
		}

		b, err := openBackend(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer b.Close()
		existing, err := b.GetStaffByEmail(cmd.Context(), s.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("staff %s already exists", s.Email)
		}
		id, err := b.CreateStaff(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("create staff: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created staff #%d <%s>\n", id, s.Email)
		return nil
	},
}

func init() {
	staffAddCmd.Flags().StringVar(&staffName, "name", "", "Display name")
	staffAddCmd.Flags().StringVar(&staffEmail, "email", "", "Login email")
	staffAddCmd.Flags().StringVar(&staffPassword, "password", "", "Password (or HRBOT_STAFF_PASSWORD, or prompt)")
	_ = staffAddCmd.MarkFlagRequired("email")
	staffCmd.AddCommand(staffAddCmd)
	rootCmd.AddCommand(staffCmd)
}

func newStaff(name, email, password string) (*models.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}
	return &models.Staff{Name: name, Email: email, PasswordHash: string(hash)}, nil
}
