package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// nullMedia holds the scan targets for a LEFT JOINed media row.
type nullMedia struct {
	id              sql.NullInt64
	name            sql.NullString
	alternativeText sql.NullString
	caption         sql.NullString
	width           sql.NullInt64
	height          sql.NullInt64
	ext             sql.NullString
	mime            sql.NullString
	size            sql.NullFloat64
	url             sql.NullString
}

func (m *nullMedia) targets() []any {
	return []any{&m.id, &m.name, &m.alternativeText, &m.caption, &m.width, &m.height, &m.ext, &m.mime, &m.size, &m.url}
}

func (m *nullMedia) media() *Media {
	if !m.id.Valid {
		return nil
	}
	return &Media{
		ID:              m.id.Int64,
		Name:            m.name.String,
		AlternativeText: m.alternativeText.String,
		Caption:         m.caption.String,
		Width:           int(m.width.Int64),
		Height:          int(m.height.Int64),
		Ext:             m.ext.String,
		Mime:            m.mime.String,
		Size:            m.size.Float64,
		URL:             m.url.String,
	}
}

func mediaColumns(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.name, %[1]s.alternative_text, %[1]s.caption, %[1]s.width, %[1]s.height, %[1]s.ext, %[1]s.mime, %[1]s.size, %[1]s.url", alias)
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	out := v.String
	return &out
}

const presentationColumns = `id, owner_user_id, state, responsible_contact_name, responsible_contact_title,
	responsible_contact_phone, responsible_contact_email, company_name, download_url,
	value_added_id, value_added_url, company_id, created_at, updated_at`

func scanPresentation(row rowScanner) (Presentation, error) {
	var (
		p            Presentation
		downloadURL  sql.NullString
		valueAddedID sql.NullInt64
		valueURL     sql.NullString
		companyID    sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &p.OwnerUserID, &p.State,
		&p.ResponsibleContactName, &p.ResponsibleContactTitle,
		&p.ResponsibleContactPhone, &p.ResponsibleContactEmail,
		&p.CompanyName, &downloadURL, &valueAddedID, &valueURL, &companyID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Presentation{}, err
	}
	p.DownloadURL = nullableString(downloadURL)
	p.ValueAddedID = nullableInt64(valueAddedID)
	p.ValueAddedURL = nullableString(valueURL)
	p.CompanyID = nullableInt64(companyID)
	return p, nil
}

// GetPresentation loads a presentation with its services, company and value-added asset.
func (s *PostgresStore) GetPresentation(ctx context.Context, id int64) (Presentation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+presentationColumns+` FROM presentations WHERE id=$1`, id)
	p, err := scanPresentation(row)
	if err != nil {
		return Presentation{}, err
	}
	if err := s.populate(ctx, &p); err != nil {
		return Presentation{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListPresentationsByOwner(ctx context.Context, ownerID int64) ([]Presentation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+presentationColumns+`
		FROM presentations
		WHERE owner_user_id=$1
		ORDER BY updated_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	var items []Presentation
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range items {
		if err := s.populate(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *PostgresStore) populate(ctx context.Context, p *Presentation) error {
	services, err := s.presentationServices(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Services = services

	if p.CompanyID != nil {
		company, err := s.GetCompany(ctx, *p.CompanyID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil {
			p.Company = &company
		}
	}
	if p.ValueAddedID != nil {
		asset, err := s.GetValueAddedAsset(ctx, *p.ValueAddedID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil {
			p.ValueAdded = &asset
		}
	}
	return nil
}

const serviceSelect = `
	SELECT s.id, s.title, s.short_description, s.long_description, s.bullet_points,
		s.company_id, s.audience_collaborator, s.audience_company,
		m.id, m.title, m.slug, m.color, m.description,
		%s
	FROM services s
	LEFT JOIN motivators m ON m.id = s.motivator_id
	LEFT JOIN media b ON b.id = s.banner_id
`

func scanService(row rowScanner) (Service, error) {
	var (
		svc          Service
		companyID    sql.NullInt64
		collaborator sql.NullBool
		company      sql.NullBool
		motivatorID  sql.NullInt64
		mTitle       sql.NullString
		mSlug        sql.NullString
		mColor       sql.NullString
		mDescription sql.NullString
		banner       nullMedia
	)
	targets := []any{
		&svc.ID, &svc.Title, &svc.ShortDescription, &svc.LongDescription, &svc.BulletPoints,
		&companyID, &collaborator, &company,
		&motivatorID, &mTitle, &mSlug, &mColor, &mDescription,
	}
	if err := row.Scan(append(targets, banner.targets()...)...); err != nil {
		return Service{}, err
	}
	svc.CompanyID = nullableInt64(companyID)
	if collaborator.Valid || company.Valid {
		svc.Audience = &AudienceFlags{Collaborator: collaborator.Bool, Company: company.Bool}
	}
	if motivatorID.Valid {
		svc.Motivator = &Motivator{
			ID:          motivatorID.Int64,
			Title:       mTitle.String,
			Slug:        mSlug.String,
			Color:       mColor.String,
			Description: mDescription.String,
		}
	}
	svc.Banner = banner.media()
	return svc, nil
}

func (s *PostgresStore) queryServices(ctx context.Context, query string, args ...any) ([]Service, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) presentationServices(ctx context.Context, presentationID int64) ([]Service, error) {
	query := fmt.Sprintf(serviceSelect, mediaColumns("b")) + `
		JOIN presentation_services ps ON ps.service_id = s.id
		WHERE ps.presentation_id = $1
		ORDER BY ps.position, s.id
	`
	return s.queryServices(ctx, query, presentationID)
}

// GetService returns sql.ErrNoRows for an unknown id.
func (s *PostgresStore) GetService(ctx context.Context, id int64) (Service, error) {
	query := fmt.Sprintf(serviceSelect, mediaColumns("b")) + `
		WHERE s.id = $1
	`
	return scanService(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) servicesByMotivator(ctx context.Context, motivatorID int64) ([]Service, error) {
	query := fmt.Sprintf(serviceSelect, mediaColumns("b")) + `
		WHERE s.motivator_id = $1
		ORDER BY s.id
	`
	return s.queryServices(ctx, query, motivatorID)
}

func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (Company, error) {
	var (
		company Company
		image   nullMedia
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, `+mediaColumns("i")+`
		FROM companies c
		LEFT JOIN media i ON i.id = c.image_id
		WHERE c.id = $1
	`, id)
	if err := row.Scan(append([]any{&company.ID, &company.Name}, image.targets()...)...); err != nil {
		return Company{}, err
	}
	company.Image = image.media()
	return company, nil
}

func (s *PostgresStore) GetValueAddedAsset(ctx context.Context, id int64) (ValueAddedAsset, error) {
	var asset ValueAddedAsset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, title, private_file_url, created_at
		FROM value_added_assets
		WHERE id = $1
	`, id).Scan(&asset.ID, &asset.OwnerUserID, &asset.Title, &asset.PrivateFileURL, &asset.CreatedAt)
	if err != nil {
		return ValueAddedAsset{}, err
	}
	return asset, nil
}

func (s *PostgresStore) ListValueAddedAssetsByOwner(ctx context.Context, ownerID int64) ([]ValueAddedAsset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_user_id, title, private_file_url, created_at
		FROM value_added_assets
		WHERE owner_user_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list value-added assets: %w", err)
	}
	defer rows.Close()

	var out []ValueAddedAsset
	for rows.Next() {
		var asset ValueAddedAsset
		if err := rows.Scan(&asset.ID, &asset.OwnerUserID, &asset.Title, &asset.PrivateFileURL, &asset.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan value-added asset: %w", err)
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateValueAddedAsset(ctx context.Context, asset ValueAddedAsset) (ValueAddedAsset, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO value_added_assets (owner_user_id, title, private_file_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, asset.OwnerUserID, asset.Title, asset.PrivateFileURL).Scan(&asset.ID, &asset.CreatedAt)
	if err != nil {
		return ValueAddedAsset{}, fmt.Errorf("insert value-added asset: %w", err)
	}
	return asset, nil
}

// CreatePresentation inserts the presentation and its service association in one transaction.
func (s *PostgresStore) CreatePresentation(ctx context.Context, p Presentation) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create presentation: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO presentations (
			owner_user_id, state, responsible_contact_name, responsible_contact_title,
			responsible_contact_phone, responsible_contact_email, company_name,
			value_added_id, value_added_url, company_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, p.OwnerUserID, p.State, p.ResponsibleContactName, p.ResponsibleContactTitle,
		p.ResponsibleContactPhone, p.ResponsibleContactEmail, p.CompanyName,
		p.ValueAddedID, p.ValueAddedURL, p.CompanyID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert presentation: %w", err)
	}
	if err := replaceServices(ctx, tx, id, p.ServiceIDs()); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create presentation: %w", err)
	}
	return id, nil
}

// UpdatePresentation writes every mutable column and the service association.
// Owner and creation time are never touched. Returns sql.ErrNoRows when the row is gone.
func (s *PostgresStore) UpdatePresentation(ctx context.Context, p Presentation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update presentation: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE presentations SET
			state = $2,
			responsible_contact_name = $3,
			responsible_contact_title = $4,
			responsible_contact_phone = $5,
			responsible_contact_email = $6,
			company_name = $7,
			download_url = $8,
			value_added_id = $9,
			value_added_url = $10,
			company_id = $11,
			updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.State, p.ResponsibleContactName, p.ResponsibleContactTitle,
		p.ResponsibleContactPhone, p.ResponsibleContactEmail, p.CompanyName,
		p.DownloadURL, p.ValueAddedID, p.ValueAddedURL, p.CompanyID)
	if err != nil {
		return fmt.Errorf("update presentation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update presentation rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	if err := replaceServices(ctx, tx, p.ID, p.ServiceIDs()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update presentation: %w", err)
	}
	return nil
}

func replaceServices(ctx context.Context, tx *sql.Tx, presentationID int64, serviceIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM presentation_services WHERE presentation_id=$1`, presentationID); err != nil {
		return fmt.Errorf("clear presentation services: %w", err)
	}
	for position, serviceID := range serviceIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO presentation_services (presentation_id, service_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (presentation_id, service_id) DO NOTHING
		`, presentationID, serviceID, position); err != nil {
			return fmt.Errorf("link service %d: %w", serviceID, err)
		}
	}
	return nil
}

func (s *PostgresStore) DeletePresentation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM presentations WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete presentation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete presentation rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, patch CompanyPatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE companies SET
			name = COALESCE($2, name),
			image_id = COALESCE($3, image_id)
		WHERE id = $1
	`, patch.ID, patch.Name, patch.ImageID)
	if err != nil {
		return fmt.Errorf("update company %d: %w", patch.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateService(ctx context.Context, patch ServicePatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE services SET
			title = COALESCE($2, title),
			short_description = COALESCE($3, short_description),
			long_description = COALESCE($4, long_description),
			bullet_points = COALESCE($5, bullet_points)
		WHERE id = $1
	`, patch.ID, patch.Title, patch.ShortDescription, patch.LongDescription, patch.BulletPoints)
	if err != nil {
		return fmt.Errorf("update service %d: %w", patch.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListMotivators(ctx context.Context) ([]Motivator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.title, m.slug, m.color, m.description, `+mediaColumns("b")+`
		FROM motivators m
		LEFT JOIN media b ON b.id = m.banner_id
		ORDER BY m.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list motivators: %w", err)
	}
	defer rows.Close()

	var out []Motivator
	for rows.Next() {
		var (
			m      Motivator
			banner nullMedia
		)
		if err := rows.Scan(append([]any{&m.ID, &m.Title, &m.Slug, &m.Color, &m.Description}, banner.targets()...)...); err != nil {
			return nil, fmt.Errorf("scan motivator: %w", err)
		}
		m.Banner = banner.media()
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListAudiences returns every audience with its ordered motivators and their services.
func (s *PostgresStore) ListAudiences(ctx context.Context) ([]Audience, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, m.id, m.title, m.slug, m.color, m.description, `+mediaColumns("b")+`
		FROM audiences a
		LEFT JOIN audience_motivators am ON am.audience_id = a.id
		LEFT JOIN motivators m ON m.id = am.motivator_id
		LEFT JOIN media b ON b.id = m.banner_id
		ORDER BY a.id, am.position, m.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list audiences: %w", err)
	}

	var audiences []Audience
	for rows.Next() {
		var (
			audienceID   int64
			audienceName string
			motivatorID  sql.NullInt64
			title        sql.NullString
			slug         sql.NullString
			color        sql.NullString
			description  sql.NullString
			banner       nullMedia
		)
		targets := []any{&audienceID, &audienceName, &motivatorID, &title, &slug, &color, &description}
		if err := rows.Scan(append(targets, banner.targets()...)...); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan audience: %w", err)
		}
		if len(audiences) == 0 || audiences[len(audiences)-1].ID != audienceID {
			audiences = append(audiences, Audience{ID: audienceID, Name: audienceName})
		}
		if !motivatorID.Valid {
			continue
		}
		current := &audiences[len(audiences)-1]
		current.Motivators = append(current.Motivators, AudienceMotivator{Motivator: Motivator{
			ID:          motivatorID.Int64,
			Title:       title.String,
			Slug:        slug.String,
			Color:       color.String,
			Description: description.String,
			Banner:      banner.media(),
		}})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range audiences {
		for j := range audiences[i].Motivators {
			services, err := s.servicesByMotivator(ctx, audiences[i].Motivators[j].ID)
			if err != nil {
				return nil, err
			}
			audiences[i].Motivators[j].Services = services
		}
	}
	return audiences, nil
}

const advisorColumns = `id, first_name, last_name, role, phone, email, password_hash, created_at`

func scanAdvisor(row rowScanner) (Advisor, error) {
	var a Advisor
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Role, &a.Phone, &a.Email, &a.PasswordHash, &a.CreatedAt)
	return a, err
}

func (s *PostgresStore) GetAdvisor(ctx context.Context, id int64) (Advisor, error) {
	return scanAdvisor(s.db.QueryRowContext(ctx, `SELECT `+advisorColumns+` FROM advisors WHERE id=$1`, id))
}

func (s *PostgresStore) GetAdvisorByEmail(ctx context.Context, email string) (Advisor, error) {
	return scanAdvisor(s.db.QueryRowContext(ctx, `SELECT `+advisorColumns+` FROM advisors WHERE LOWER(email)=LOWER($1)`, email))
}

func (s *PostgresStore) CreateAdvisor(ctx context.Context, a Advisor) (Advisor, error) {
	if a.Role == "" {
		a.Role = "advisor"
	}
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO advisors (first_name, last_name, role, phone, email, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, a.FirstName, a.LastName, a.Role, a.Phone, a.Email, a.PasswordHash).Scan(&a.ID, &createdAt)
	if err != nil {
		return Advisor{}, fmt.Errorf("insert advisor: %w", err)
	}
	a.CreatedAt = createdAt
	return a, nil
}
