package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bootstrap creates the application tables and seeds the admin user. The DDL
// is executed one statement at a time; the pgx stdlib driver rejects
// multi-statement Exec calls.
func (s *Store) Bootstrap(ctx context.Context, adminEmail, adminPassword string) error {
	for _, stmt := range strings.Split(s.Dialect.TablesSQL(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap tables: %w", err)
		}
	}
	if err := s.seedAdminUser(ctx, adminEmail, adminPassword); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context, email, password string) error {
	var count int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM _users").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	pb := s.Dialect.NewParamBuilder()
	_, err = Exec(ctx, s.DB,
		fmt.Sprintf("INSERT INTO _users (id, email, password_hash) VALUES (%s, %s, %s)",
			pb.Add(GenerateUUID()), pb.Add(email), pb.Add(string(hashBytes))),
		pb.Params()...)
	if err != nil {
		return err
	}

	log.Printf("WARNING: Default admin user created (%s), change the password immediately.", email)
	return nil
}
