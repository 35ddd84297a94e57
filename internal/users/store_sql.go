package users

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/examdesk/examdesk/internal/audit"
	"github.com/examdesk/examdesk/internal/db"
	"github.com/examdesk/examdesk/internal/rbac"
	"github.com/examdesk/examdesk/internal/validate"
)

// DefaultCost is the bcrypt cost for stored passwords.
const DefaultCost = 12

const cols = `id,email,username,full_name,password_hash,role,school_id,is_active,created_at`

type SQLStore struct {
	db     *sqlx.DB
	events *audit.EventRepo
	cost   int
}

// NewSQLStore returns a user store. cost <= 0 selects DefaultCost; events
// may be nil.
func NewSQLStore(db *sqlx.DB, events *audit.EventRepo, cost int) *SQLStore {
	if cost <= 0 {
		cost = DefaultCost
	}
	return &SQLStore{db: db, events: events, cost: cost}
}

func (s *SQLStore) hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), s.cost)
	return string(b), errors.Wrap(err, "hash password")
}

// Signup creates a student account.
func (s *SQLStore) Signup(ctx context.Context, req SignupRequest) (User, error) {
	if err := validate.Struct(req); err != nil {
		return User{}, err
	}
	h, err := s.hash(req.Password)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: h,
		Role:         rbac.RoleStudent,
		SchoolID:     req.SchoolID,
		IsActive:     true,
		CreatedAt:    time.Now().Unix(),
	}
	if err := insert(ctx, s.db, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func insert(ctx context.Context, ex sqlx.ExtContext, u User) error {
	_, err := sqlx.NamedExecContext(ctx, ex, `INSERT INTO users (`+cols+`) VALUES (
		:id,:email,:username,:full_name,:password_hash,:role,:school_id,:is_active,:created_at)`, u)
	switch {
	case db.IsUniqueViolation(err):
		return errors.Wrap(ErrConflict, u.Email)
	case db.IsForeignKeyViolation(err):
		return validate.New("unknown school", validate.FieldError{Field: "school_id", Error: "school does not exist"})
	}
	return errors.Wrap(err, "insert user")
}

// Authenticate checks a login (email or username) and password.
func (s *SQLStore) Authenticate(ctx context.Context, login, password string) (User, error) {
	login = strings.TrimSpace(login)
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT `+cols+` FROM users WHERE email=$1 OR username=$2`,
		strings.ToLower(login), login)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrBadCredentials
	}
	if err != nil {
		return User{}, errors.Wrap(err, "load user")
	}
	if !u.IsActive || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	return u, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT `+cols+` FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, errors.Wrap(ErrNotFound, id)
	}
	return u, errors.Wrap(err, "get user")
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]User, error) {
	var args db.Args
	q := `SELECT ` + cols + ` FROM users WHERE 1=1`
	if opts.Role != "" {
		q += ` AND role=` + args.Add(opts.Role)
	}
	if opts.SchoolID != "" {
		q += ` AND school_id=` + args.Add(opts.SchoolID)
	}
	if t := strings.TrimSpace(opts.Q); t != "" {
		q += ` AND (LOWER(username) ` + args.Contains(t) +
			` OR LOWER(full_name) ` + args.Contains(t) +
			` OR LOWER(email) ` + args.Contains(t) + `)`
	}
	limit, offset := db.Page(opts.Limit, opts.Offset, 50, 200)
	q += ` ORDER BY username LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)

	out := []User{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return out, nil
}

// Update applies an admin patch. The last active admin cannot be demoted or
// deactivated.
func (s *SQLStore) Update(ctx context.Context, id string, p Patch) (User, error) {
	if err := validate.Struct(p); err != nil {
		return User{}, err
	}
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var u User
		err := tx.GetContext(ctx, &u, `SELECT `+cols+` FROM users WHERE id=$1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(ErrNotFound, id)
		}
		if err != nil {
			return errors.Wrap(err, "load user")
		}

		losesAdmin := (p.Role != nil && *p.Role != rbac.RoleAdmin) || (p.IsActive != nil && !*p.IsActive)
		if u.Role == rbac.RoleAdmin && u.IsActive && losesAdmin {
			if err := lastAdminGuard(ctx, tx); err != nil {
				return err
			}
		}

		if p.Role != nil {
			u.Role = *p.Role
		}
		if p.SchoolID != nil {
			u.SchoolID = p.SchoolID
			if *p.SchoolID == "" {
				u.SchoolID = nil
			}
		}
		if p.FullName != nil {
			u.FullName = *p.FullName
		}
		if p.IsActive != nil {
			u.IsActive = *p.IsActive
		}
		_, err = tx.NamedExecContext(ctx, `UPDATE users SET role=:role, school_id=:school_id,
			full_name=:full_name, is_active=:is_active WHERE id=:id`, u)
		if db.IsForeignKeyViolation(err) {
			return validate.New("unknown school", validate.FieldError{Field: "school_id", Error: "school does not exist"})
		}
		if err != nil {
			return errors.Wrap(err, "update user")
		}
		if s.events != nil {
			return s.events.RecordTx(ctx, tx, audit.TypeUserUpdated, id, p)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) ChangePassword(ctx context.Context, id string, req PasswordChange) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)) != nil {
		return ErrBadCredentials
	}
	h, err := s.hash(req.NewPassword)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, h, id)
	return errors.Wrap(err, "update password")
}

// lastAdminGuard fails with ErrLastAdmin when at most one active admin is
// left. Callers check first that the user being changed is one of them.
func lastAdminGuard(ctx context.Context, tx *sqlx.Tx) error {
	var admins int
	if err := tx.GetContext(ctx, &admins,
		`SELECT COUNT(1) FROM users WHERE role=$1 AND is_active = TRUE`, rbac.RoleAdmin); err != nil {
		return errors.Wrap(err, "count admins")
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// BulkUpsert inserts or updates a roster in one transaction. Any bad row
// aborts the whole import.
func (s *SQLStore) BulkUpsert(ctx context.Context, rows []BulkRow) (BulkResult, error) {
	for i := range rows {
		if err := validate.Struct(rows[i]); err != nil {
			return BulkResult{}, errors.Wrapf(err, "row %d", i+1)
		}
	}
	now := time.Now().Unix()
	var res BulkResult
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i, r := range rows {
			r.Email = strings.ToLower(strings.TrimSpace(r.Email))

			var phash string
			if r.Password != "" {
				h, err := s.hash(r.Password)
				if err != nil {
					return err
				}
				phash = h
			}

			var cur struct {
				ID       string `db:"id"`
				Role     string `db:"role"`
				IsActive bool   `db:"is_active"`
			}
			err := tx.GetContext(ctx, &cur, `SELECT id, role, is_active FROM users WHERE id=$1 OR email=$2`, r.ID, r.Email)
			switch {
			case err == nil:
				if cur.Role == rbac.RoleAdmin && cur.IsActive && r.Role != "" && r.Role != rbac.RoleAdmin {
					if err := lastAdminGuard(ctx, tx); err != nil {
						return errors.Wrapf(err, "row %d", i+1)
					}
				}
				// empty role and missing school keep the current values
				q := `UPDATE users SET email=$1, username=$2, full_name=$3, role=COALESCE(NULLIF($4,''), role), school_id=COALESCE($5, school_id)`
				args := []any{r.Email, r.Username, r.FullName, r.Role, r.SchoolID}
				if phash != "" {
					q += `, password_hash=$6 WHERE id=$7`
					args = append(args, phash, cur.ID)
				} else {
					q += ` WHERE id=$6`
					args = append(args, cur.ID)
				}
				if _, err := tx.ExecContext(ctx, q, args...); err != nil {
					if db.IsUniqueViolation(err) {
						return errors.Wrapf(ErrConflict, "row %d", i+1)
					}
					return errors.Wrapf(err, "row %d", i+1)
				}
				res.Updated++
			case errors.Is(err, sql.ErrNoRows):
				if phash == "" {
					return errors.Wrapf(validate.New("password required for new user "+r.Username,
						validate.FieldError{Field: "password", Error: "required for new users"}), "row %d", i+1)
				}
				if r.Role == "" {
					r.Role = rbac.RoleStudent
				}
				id := r.ID
				if id == "" {
					id = uuid.NewString()
				}
				u := User{ID: id, Email: r.Email, Username: r.Username, FullName: r.FullName,
					PasswordHash: phash, Role: r.Role, SchoolID: r.SchoolID, IsActive: true, CreatedAt: now}
				if err := insert(ctx, tx, u); err != nil {
					return errors.Wrapf(err, "row %d", i+1)
				}
				res.Inserted++
			default:
				return errors.Wrapf(err, "row %d", i+1)
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	return res, nil
}

// EnsureAdmin creates the bootstrap admin when no admin exists yet.
// It reports whether an account was created.
func (s *SQLStore) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM users WHERE role=$1`, rbac.RoleAdmin); err != nil {
		return false, errors.Wrap(err, "count admins")
	}
	if n > 0 {
		return false, nil
	}
	h, err := s.hash(password)
	if err != nil {
		return false, err
	}
	username := strings.SplitN(email, "@", 2)[0]
	u := User{ID: uuid.NewString(), Email: strings.ToLower(email), Username: username, FullName: "Administrator",
		PasswordHash: h, Role: rbac.RoleAdmin, IsActive: true, CreatedAt: time.Now().Unix()}
	if err := insert(ctx, s.db, u); err != nil {
		return false, err
	}
	return true, nil
}
