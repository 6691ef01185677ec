// Package store persists campaigns, match rows and the tenant/property
// directory. SQL works on postgres and sqlite; Memory backs tests and
// dry runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/db"
	"github.com/lettings-match/internal/match"
)

// SQL implements campaign.Store and campaign.Directory over database/sql.
type SQL struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// NewSQL wraps an open connection.
func NewSQL(conn *db.Connection, logger *zap.Logger) *SQL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQL{db: conn.DB, driver: conn.Driver, logger: logger.Named("store")}
}

func (s *SQL) q(query string) string {
	return db.Rebind(s.driver, query)
}

const propertyColumns = `id, agent_id, property_type, price, bedrooms, address, city, area, university,
	distance_to_university, bills_included, included_bills, features, furnished, available_date, available`

// SaveTenant inserts or replaces a tenant.
func (s *SQL) SaveTenant(ctx context.Context, t match.Tenant) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO tenants (id, name, email, demographic) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, demographic = excluded.demographic
	`), t.ID, t.Name, t.Email, t.Demographic)
	if err != nil {
		return persistErr(err, "save tenant %s", t.ID)
	}
	return nil
}

// SavePreference replaces the tenant's preference wholesale.
func (s *SQL) SavePreference(ctx context.Context, p match.TenantPreference) error {
	if err := checkPreference(p); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrapf(err, "encode preference of tenant %s", p.TenantID)
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO tenant_preferences (tenant_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`), p.TenantID, string(data), time.Now().UTC())
	if err != nil {
		return persistErr(err, "save preference of tenant %s", p.TenantID)
	}
	return nil
}

// SaveProperty inserts or replaces a listing.
func (s *SQL) SaveProperty(ctx context.Context, p match.PropertyListing) error {
	if err := checkProperty(p); err != nil {
		return err
	}
	bills, _ := json.Marshal(nonNil(p.IncludedBills))
	features, _ := json.Marshal(nonNil(p.Features))

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO properties (`+propertyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			agent_id = excluded.agent_id,
			property_type = excluded.property_type,
			price = excluded.price,
			bedrooms = excluded.bedrooms,
			address = excluded.address,
			city = excluded.city,
			area = excluded.area,
			university = excluded.university,
			distance_to_university = excluded.distance_to_university,
			bills_included = excluded.bills_included,
			included_bills = excluded.included_bills,
			features = excluded.features,
			furnished = excluded.furnished,
			available_date = excluded.available_date,
			available = excluded.available
	`),
		p.ID, p.AgentID, p.PropertyType, p.Price.StringFixed(2), p.Bedrooms, p.Address, p.City, p.Area,
		nullString(p.University), nullFloat(p.DistanceToUniversity), p.BillsIncluded,
		string(bills), string(features), furnishedValue(p.Furnished), nullTime(p.AvailableDate), p.Available)
	if err != nil {
		return persistErr(err, "save property %s", p.ID)
	}
	return nil
}

func (s *SQL) ListTenants(ctx context.Context) ([]match.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, demographic FROM tenants ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "list tenants")
	}
	defer rows.Close()

	out := []match.Tenant{}
	for rows.Next() {
		var t match.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.Demographic); err != nil {
			return nil, eris.Wrap(err, "scan tenant")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "list tenants")
}

func (s *SQL) GetTenant(ctx context.Context, id string) (*match.Tenant, error) {
	var t match.Tenant
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, name, email, demographic FROM tenants WHERE id = ?`), id).
		Scan(&t.ID, &t.Name, &t.Email, &t.Demographic)
	if err != nil {
		return nil, readErr(err, "tenant %s", id)
	}
	return &t, nil
}

func (s *SQL) GetPreference(ctx context.Context, tenantID string) (*match.TenantPreference, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT data FROM tenant_preferences WHERE tenant_id = ?`), tenantID).Scan(&data)
	if err != nil {
		return nil, readErr(err, "preference of tenant %s", tenantID)
	}

	var p match.TenantPreference
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrapf(err, "decode preference of tenant %s", tenantID)
	}
	p.TenantID = tenantID
	return &p, nil
}

func (s *SQL) GetProperty(ctx context.Context, id string) (*match.PropertyListing, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+propertyColumns+` FROM properties WHERE id = ?`), id)
	p, err := scanProperty(row)
	if err != nil {
		return nil, readErr(err, "property %s", id)
	}
	return p, nil
}

// ListProperties narrows by the scalar predicates in SQL and applies the
// full filter in Go, so the SQL only needs to return a superset.
func (s *SQL) ListProperties(ctx context.Context, filter match.PropertyFilter) ([]match.PropertyListing, error) {
	// WHERE builder
	where := make([]string, 0, 8)
	args := make([]any, 0, 10)

	if filter.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, filter.MinPrice.String())
	}
	if filter.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, filter.MaxPrice.String())
	}
	if filter.MinBedrooms != nil {
		where = append(where, "bedrooms >= ?")
		args = append(args, *filter.MinBedrooms)
	}
	if filter.MaxBedrooms != nil {
		where = append(where, "bedrooms <= ?")
		args = append(args, *filter.MaxBedrooms)
	}
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		// contains, case-insensitive
		where = append(where, "(LOWER(address) LIKE '%' || LOWER(CAST(? AS TEXT)) || '%' OR LOWER(city) LIKE '%' || LOWER(CAST(? AS TEXT)) || '%' OR LOWER(area) LIKE '%' || LOWER(CAST(? AS TEXT)) || '%')")
		args = append(args, loc, loc, loc)
	}
	if uni := strings.TrimSpace(filter.University); uni != "" {
		where = append(where, "LOWER(university) LIKE '%' || LOWER(CAST(? AS TEXT)) || '%'")
		args = append(args, uni)
	}
	if filter.Furnished != nil {
		where = append(where, "furnished = ?")
		args = append(args, furnishedValue(match.FurnishedFromBool(*filter.Furnished)))
	}
	if filter.AvailableBy != nil {
		where = append(where, "available_date IS NOT NULL AND available_date <= ?")
		args = append(args, filter.AvailableBy.UTC())
	}
	if filter.OnlyAvailable {
		where = append(where, "available = ?")
		args = append(args, true)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	props, err := s.queryProperties(ctx, `SELECT `+propertyColumns+` FROM properties `+whereSQL+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "list properties")
	}

	out := props[:0]
	for _, p := range props {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	s.logger.Debug("properties filtered",
		zap.Int("sql_predicates", len(where)),
		zap.Int("kept", len(out)))
	return out, nil
}

func (s *SQL) ListPropertiesByAgent(ctx context.Context, agentID string) ([]match.PropertyListing, error) {
	props, err := s.queryProperties(ctx, `SELECT `+propertyColumns+` FROM properties WHERE agent_id = ? ORDER BY id`, agentID)
	if err != nil {
		return nil, eris.Wrapf(err, "list properties of agent %s", agentID)
	}
	return props, nil
}

func (s *SQL) queryProperties(ctx context.Context, query string, args ...any) ([]match.PropertyListing, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []match.PropertyListing{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProperty(row scanner) (*match.PropertyListing, error) {
	var (
		p                 match.PropertyListing
		university        sql.NullString
		distance          sql.NullFloat64
		billsJSON, ftJSON string
		furnished         sql.NullString
		availableDate     sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.AgentID, &p.PropertyType, &p.Price, &p.Bedrooms, &p.Address, &p.City, &p.Area,
		&university, &distance, &p.BillsIncluded, &billsJSON, &ftJSON, &furnished, &availableDate, &p.Available); err != nil {
		return nil, err
	}

	if university.Valid {
		p.University = &university.String
	}
	if distance.Valid {
		p.DistanceToUniversity = &distance.Float64
	}
	if availableDate.Valid {
		t := availableDate.Time.UTC()
		p.AvailableDate = &t
	}
	if furnished.Valid {
		p.Furnished = match.ParseFurnished(furnished.String)
	}
	_ = json.Unmarshal([]byte(billsJSON), &p.IncludedBills)
	_ = json.Unmarshal([]byte(ftJSON), &p.Features)
	return &p, nil
}

func (s *SQL) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	cols, err := encodeCampaign(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO targeting_campaigns (
			id, name, agent_id, target_demographic, property_filter, tenant_filter, target_properties,
			matched_tenants, status, generate_insights, insights, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), c.ID, c.Name, c.AgentID, string(c.TargetDemographic), cols.propertyFilter, cols.tenantFilter,
		cols.targetProperties, cols.matchedTenants, string(c.Status), c.GenerateInsights, cols.insights,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return persistErr(err, "create campaign %s", c.ID)
	}
	return nil
}

func (s *SQL) UpdateCampaign(ctx context.Context, c *campaign.Campaign) error {
	cols, err := encodeCampaign(c)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE targeting_campaigns SET
			name = ?, target_demographic = ?, property_filter = ?, tenant_filter = ?, target_properties = ?,
			matched_tenants = ?, status = ?, generate_insights = ?, insights = ?, updated_at = ?
		WHERE id = ?
	`), c.Name, string(c.TargetDemographic), cols.propertyFilter, cols.tenantFilter, cols.targetProperties,
		cols.matchedTenants, string(c.Status), c.GenerateInsights, cols.insights, c.UpdatedAt.UTC(), c.ID)
	if err != nil {
		return persistErr(err, "update campaign %s", c.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return eris.Wrapf(campaign.ErrNotFound, "campaign %s", c.ID)
	}
	return nil
}

func (s *SQL) GetCampaign(ctx context.Context, id string) (*campaign.Campaign, error) {
	var (
		c                                  campaign.Campaign
		demographic, status                string
		propertyFilter, tenantFilter       sql.NullString
		targetJSON, matchedJSON, insightsJ string
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, name, agent_id, target_demographic, property_filter, tenant_filter, target_properties,
			matched_tenants, status, generate_insights, insights, created_at, updated_at
		FROM targeting_campaigns WHERE id = ?
	`), id).Scan(&c.ID, &c.Name, &c.AgentID, &demographic, &propertyFilter, &tenantFilter, &targetJSON,
		&matchedJSON, &status, &c.GenerateInsights, &insightsJ, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, readErr(err, "campaign %s", id)
	}

	c.TargetDemographic = campaign.Demographic(demographic)
	c.Status = campaign.Status(status)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	if propertyFilter.Valid {
		c.PropertyFilter = &match.PropertyFilter{}
		if err := json.Unmarshal([]byte(propertyFilter.String), c.PropertyFilter); err != nil {
			return nil, eris.Wrapf(err, "decode property filter of campaign %s", id)
		}
	}
	if tenantFilter.Valid {
		c.TenantFilter = &campaign.TenantFilter{}
		if err := json.Unmarshal([]byte(tenantFilter.String), c.TenantFilter); err != nil {
			return nil, eris.Wrapf(err, "decode tenant filter of campaign %s", id)
		}
	}
	for _, col := range []struct {
		raw  string
		into any
	}{
		{targetJSON, &c.TargetProperties},
		{matchedJSON, &c.MatchedTenants},
		{insightsJ, &c.Insights},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.into); err != nil {
			return nil, eris.Wrapf(err, "decode campaign %s", id)
		}
	}
	if len(c.Insights) == 0 {
		c.Insights = nil
	}
	return &c, nil
}

func (s *SQL) CreateMatch(ctx context.Context, m *match.PropertyTenantMatch) error {
	reasons, err := json.Marshal(nonNil(m.Reasons))
	if err != nil {
		return eris.Wrap(err, "encode reasons")
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO property_tenant_matches (id, campaign_id, property_id, tenant_id, score, reasons, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), m.ID, m.CampaignID, m.PropertyID, m.TenantID, m.Score, string(reasons), m.CreatedAt.UTC())
	if err != nil {
		return persistErr(err, "create match %s/%s", m.TenantID, m.PropertyID)
	}
	return nil
}

func (s *SQL) DeleteMatches(ctx context.Context, campaignID string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM property_tenant_matches WHERE campaign_id = ?`), campaignID)
	if err != nil {
		return 0, persistErr(err, "delete matches of campaign %s", campaignID)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListMatches returns the campaign's match rows ordered by score descending,
// then tenant and property ID.
func (s *SQL) ListMatches(ctx context.Context, campaignID string) ([]match.PropertyTenantMatch, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, campaign_id, property_id, tenant_id, score, reasons, created_at
		FROM property_tenant_matches
		WHERE campaign_id = ?
		ORDER BY score DESC, tenant_id ASC, property_id ASC
	`), campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "list matches of campaign %s", campaignID)
	}
	defer rows.Close()

	out := []match.PropertyTenantMatch{}
	for rows.Next() {
		var m match.PropertyTenantMatch
		var reasons string
		if err := rows.Scan(&m.ID, &m.CampaignID, &m.PropertyID, &m.TenantID, &m.Score, &reasons, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "scan match")
		}
		m.CreatedAt = m.CreatedAt.UTC()
		_ = json.Unmarshal([]byte(reasons), &m.Reasons)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "list matches")
}

type campaignColumns struct {
	propertyFilter, tenantFilter               sql.NullString
	targetProperties, matchedTenants, insights string
}

func encodeCampaign(c *campaign.Campaign) (campaignColumns, error) {
	var cols campaignColumns
	var err error

	if c.PropertyFilter != nil {
		if cols.propertyFilter, err = jsonNullString(c.PropertyFilter); err != nil {
			return cols, eris.Wrap(err, "encode property filter")
		}
	}
	if c.TenantFilter != nil {
		if cols.tenantFilter, err = jsonNullString(c.TenantFilter); err != nil {
			return cols, eris.Wrap(err, "encode tenant filter")
		}
	}

	target, _ := json.Marshal(nonNil(c.TargetProperties))
	insights, _ := json.Marshal(nonNil(c.Insights))
	matched := c.MatchedTenants
	if matched == nil {
		matched = []campaign.MatchedTenant{}
	}
	matchedJSON, err := json.Marshal(matched)
	if err != nil {
		return cols, eris.Wrap(err, "encode matched tenants")
	}

	cols.targetProperties = string(target)
	cols.matchedTenants = string(matchedJSON)
	cols.insights = string(insights)
	return cols, nil
}

func jsonNullString(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func readErr(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(campaign.ErrNotFound, format, args...)
	}
	return eris.Wrapf(err, "read "+format, args...)
}

func persistErr(err error, format string, args ...any) error {
	return eris.Wrapf(campaign.ErrPersistenceFailure, format+": %v", append(args, err)...)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func furnishedValue(f match.Furnished) sql.NullString {
	if _, known := f.Bool(); !known {
		return sql.NullString{}
	}
	return sql.NullString{String: f.String(), Valid: true}
}
