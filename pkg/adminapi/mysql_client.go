/*
Copyright The MySQL Operator Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package adminapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"

	"github.com/22ndtech/mysql-operator/pkg/log"
)

// mysqlSession is the concrete Session implementation, backed by
// database/sql and github.com/go-sql-driver/mysql. This replaces the
// teacher's lib/pq-backed Postgres connection with the MySQL wire driver,
// since this core talks to mysqld admin accounts directly rather than to a
// mysqlsh-style external AdminAPI process.
type mysqlSession struct {
	endpoint Endpoint
	db       *sql.DB
}

func (s *mysqlSession) Endpoint() Endpoint {
	return s.endpoint
}

func (s *mysqlSession) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Credentials is the account the operator uses to open admin connections.
type Credentials struct {
	User     string
	Password string
}

// MySQLClient is the production Client implementation.
type MySQLClient struct {
	Credentials Credentials
}

// NewMySQLClient builds a Client that talks to real mysqld instances using
// the given administrative credentials.
func NewMySQLClient(creds Credentials) *MySQLClient {
	return &MySQLClient{Credentials: creds}
}

func (c *MySQLClient) dsn(endpoint Endpoint) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/?timeout=5s",
		c.Credentials.User, c.Credentials.Password, endpoint.Host, endpoint.Port)
}

func (c *MySQLClient) Connect(ctx context.Context, endpoint Endpoint) (Session, error) {
	db, err := sql.Open("mysql", c.dsn(endpoint))
	if err != nil {
		return nil, classifyConnectError(endpoint, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classifyConnectError(endpoint, err)
	}
	return &mysqlSession{endpoint: endpoint, db: db}, nil
}

func classifyConnectError(endpoint Endpoint, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return WrapError(CRMinError, fmt.Sprintf("cannot connect to %s", endpoint), err)
	}
	return WrapError(CRMinError+1, fmt.Sprintf("cannot connect to %s", endpoint), err)
}

// JumpToPrimary implements the two-query dance from shellutils.jump_to_primary:
// ask the current session who the PRIMARY is, and if it is someone else,
// open a new connection to them.
func (c *MySQLClient) JumpToPrimary(ctx context.Context, session Session) (Session, error) {
	members, err := c.QueryMembers(ctx, session)
	if err != nil {
		return nil, err
	}

	var primary *MemberInfo
	for i := range members {
		if members[i].Role == RolePrimary {
			primary = &members[i]
			break
		}
	}
	if primary == nil {
		return nil, nil
	}

	if primary.Endpoint == session.Endpoint() {
		return session, nil
	}

	primarySession, err := c.Connect(ctx, primary.Endpoint)
	if err != nil {
		// the PRIMARY we were told about is unreachable; this is not a
		// definitive "no PRIMARY" answer, but the caller treats a
		// connect failure here the same way: fall back to iterating pods.
		return nil, nil
	}
	return primarySession, nil
}

func (c *MySQLClient) QueryMembership(ctx context.Context, session Session) (LocalMembership, error) {
	s := session.(*mysqlSession)
	row := s.db.QueryRowContext(ctx, `
		SELECT m.MEMBER_ID, m.MEMBER_ROLE, m.MEMBER_STATE,
		       @@global.group_replication_view_change_uuid, @@global.version
		FROM performance_schema.replication_group_members m
		JOIN performance_schema.replication_group_member_stats s
		  ON m.MEMBER_ID = s.MEMBER_ID
		WHERE m.MEMBER_HOST = @@hostname`)

	var lm LocalMembership
	var role, state string
	if err := row.Scan(&lm.MemberID, &role, &state, &lm.ViewID, &lm.Version); err != nil {
		return LocalMembership{}, WrapError(CRMinError, "query_membership failed", err)
	}
	lm.Role = normalizeRole(role)
	lm.Status = normalizeStatus(state)
	return lm, nil
}

func (c *MySQLClient) QueryMembers(ctx context.Context, session Session) ([]MemberInfo, error) {
	s := session.(*mysqlSession)
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.MEMBER_ID, m.MEMBER_HOST, m.MEMBER_PORT, m.MEMBER_ROLE, m.MEMBER_STATE, m.MEMBER_VERSION,
		       COALESCE(s.VIEW_ID, '')
		FROM performance_schema.replication_group_members m
		LEFT JOIN performance_schema.replication_group_member_stats s
		  ON m.MEMBER_ID = s.MEMBER_ID`)
	if err != nil {
		return nil, WrapError(CRMinError, "query_members failed", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var m MemberInfo
		var host, role, state string
		var port int
		if err := rows.Scan(&m.MemberID, &host, &port, &role, &state, &m.Version, &m.ViewID); err != nil {
			return nil, WrapError(CRMinError, "query_members scan failed", err)
		}
		m.Endpoint = Endpoint{Host: host, Port: port}
		m.Role = normalizeRole(role)
		m.Status = normalizeStatus(state)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (c *MySQLClient) ServerInfo(ctx context.Context, session Session) (ServerInfo, error) {
	s := session.(*mysqlSession)
	var info ServerInfo
	row := s.db.QueryRowContext(ctx, `SELECT @@server_id, @@server_uuid, @@report_host`)
	if err := row.Scan(&info.ServerID, &info.ServerUUID, &info.ReportHost); err != nil {
		return ServerInfo{}, WrapError(CRMinError, "server info query failed", err)
	}
	// gtid_executed/gtid_purged are best-effort, matching log_mysql_info's
	// own try/except around this second query.
	row = s.db.QueryRowContext(ctx, `SELECT @@global.gtid_executed, @@global.gtid_purged`)
	_ = row.Scan(&info.GTIDExecuted, &info.GTIDPurged)
	return info, nil
}

func (c *MySQLClient) CreateCluster(ctx context.Context, seedSession Session, name string, opts CreateClusterOptions) error {
	s := seedSession.(*mysqlSession)
	logger := log.FromContext(ctx)

	sslMode := "REQUIRED"
	if opts.MemberSSLMode != "" {
		sslMode = opts.MemberSSLMode
	}
	exitAction := CommonGRExitStateAction
	if opts.ExitStateAction != "" {
		exitAction = opts.ExitStateAction
	}

	logger.Debug("create_cluster", "name", name, "gtidSetIsComplete", opts.GTIDSetIsComplete,
		"memberSslMode", sslMode, "exitStateAction", exitAction)

	if _, err := s.db.ExecContext(ctx, "SET GLOBAL group_replication_group_name = UUID()"); err != nil {
		return classifyAdminError(err)
	}
	if _, err := s.db.ExecContext(ctx,
		"SET GLOBAL group_replication_exit_state_action = ?", exitAction); err != nil {
		return classifyAdminError(err)
	}
	if _, err := s.db.ExecContext(ctx, "SET GLOBAL group_replication_ssl_mode = ?", sslMode); err != nil {
		return classifyAdminError(err)
	}
	if _, err := s.db.ExecContext(ctx,
		"START GROUP_REPLICATION USER = ?, PASSWORD = ?", c.Credentials.User, c.Credentials.Password); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *MySQLClient) StopGroupReplication(ctx context.Context, session Session) error {
	s := session.(*mysqlSession)
	if _, err := s.db.ExecContext(ctx, "STOP GROUP_REPLICATION"); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *MySQLClient) AddInstance(ctx context.Context, clusterSession Session, join Endpoint, opts AddInstanceOptions) error {
	joinSession, err := c.Connect(ctx, join)
	if err != nil {
		return err
	}
	defer joinSession.Close()

	s := joinSession.(*mysqlSession)
	method := opts.RecoveryMethod
	if method == "" {
		method = "clone"
	}
	if method == "clone" {
		if err := c.cloneFromDonor(ctx, s, clusterSession.Endpoint()); err != nil {
			return err
		}
	}
	if _, err := s.db.ExecContext(ctx,
		"START GROUP_REPLICATION USER = ?, PASSWORD = ?", c.Credentials.User, c.Credentials.Password); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *MySQLClient) cloneFromDonor(ctx context.Context, joinSession *mysqlSession, donor Endpoint) error {
	_, err := joinSession.db.ExecContext(ctx,
		"CLONE INSTANCE FROM ?@?:? IDENTIFIED BY ?",
		c.Credentials.User, donor.Host, donor.Port, c.Credentials.Password)
	if err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *MySQLClient) RejoinInstance(ctx context.Context, clusterSession Session, member Endpoint, _ RejoinInstanceOptions) error {
	memberSession, err := c.Connect(ctx, member)
	if err != nil {
		return err
	}
	defer memberSession.Close()

	s := memberSession.(*mysqlSession)
	if _, err := s.db.ExecContext(ctx,
		"START GROUP_REPLICATION USER = ?, PASSWORD = ?", c.Credentials.User, c.Credentials.Password); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *MySQLClient) RemoveInstance(ctx context.Context, clusterSession Session, member Endpoint, opts RemoveInstanceOptions) error {
	memberSession, err := c.Connect(ctx, member)
	if err != nil {
		if opts.Force {
			// With force=true the member may legitimately be unreachable;
			// the connect error is still returned unchanged, and
			// internal/controller's removeInstance passes it on as is.
			return err
		}
		return err
	}
	defer memberSession.Close()

	s := memberSession.(*mysqlSession)
	if _, err := s.db.ExecContext(ctx, "STOP GROUP_REPLICATION"); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *MySQLClient) RebootClusterFromCompleteOutage(ctx context.Context, session Session) error {
	s := session.(*mysqlSession)
	if _, err := s.db.ExecContext(ctx,
		"START GROUP_REPLICATION USER = ?, PASSWORD = ?", c.Credentials.User, c.Credentials.Password); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *MySQLClient) ForceQuorumUsingPartitionOf(ctx context.Context, session Session, of Endpoint) error {
	s := session.(*mysqlSession)
	if _, err := s.db.ExecContext(ctx,
		"SELECT group_replication_set_as_primary(?)", of.String()); err != nil {
		return classifyAdminError(err)
	}
	if _, err := s.db.ExecContext(ctx, "SET GLOBAL group_replication_force_members = @@group_replication_local_address"); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *MySQLClient) Status(ctx context.Context, session Session) (ClusterStatusReport, error) {
	members, err := c.QueryMembers(ctx, session)
	if err != nil {
		return ClusterStatusReport{}, err
	}
	return ClusterStatusReport{Summary: fmt.Sprintf("%d members visible", len(members))}, nil
}

func (c *MySQLClient) EnsureRouterAccount(ctx context.Context, session Session, user, password string) error {
	return c.ensureAccount(ctx, session, user, password, routerGrants)
}

func (c *MySQLClient) EnsureBackupAccount(ctx context.Context, session Session, user, password string) error {
	return c.ensureAccount(ctx, session, user, password, backupGrants)
}

const routerGrants = "SELECT ON mysql_innodb_cluster_metadata.*"
const backupGrants = "BACKUP_ADMIN, RELOAD, PROCESS, SELECT ON *.*"

func (c *MySQLClient) ensureAccount(ctx context.Context, session Session, user, password, grants string) error {
	s := session.(*mysqlSession)

	_, err := s.db.ExecContext(ctx, "SHOW GRANTS FOR ?@'%'", user)
	exists := err == nil
	if err != nil && !IsGrantAbsent(classifyAdminError(err)) {
		return classifyAdminError(err)
	}

	if !exists {
		if _, err := s.db.ExecContext(ctx,
			"CREATE USER ?@'%' IDENTIFIED BY ?", user, password); err != nil {
			return classifyAdminError(err)
		}
	} else {
		if _, err := s.db.ExecContext(ctx,
			"ALTER USER ?@'%' IDENTIFIED BY ?", user, password); err != nil {
			return classifyAdminError(err)
		}
	}

	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf("GRANT %s TO ?@'%%'", grants), user); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func normalizeRole(role string) Role {
	switch role {
	case "PRIMARY":
		return RolePrimary
	case "SECONDARY":
		return RoleSecondary
	default:
		return RoleUnknown
	}
}

func normalizeStatus(state string) MemberStatus {
	switch state {
	case "ONLINE":
		return StatusOnline
	case "RECOVERING":
		return StatusRecovering
	case "OFFLINE":
		return StatusOffline
	case "ERROR":
		return StatusError
	default:
		return StatusUnreachable
	}
}

// classifyAdminError maps a raw database/sql error to our categorized
// *Error taxonomy (spec.md §6/§7): a server error keeps its MySQL error
// number, a network error becomes a transport error, and anything else
// gets code 2045, which lies in the transport range and so counts as
// transient. Every call site above funnels through this one place.
func classifyAdminError(err error) error {
	if err == nil {
		return nil
	}
	if ae, ok := AsAdminError(err); ok {
		return ae
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return WrapError(ErrorCode(myErr.Number), myErr.Message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return WrapError(CRMinError, "transport error", err)
	}
	return WrapError(ErAccessDeniedError+1000, "admin operation failed", err)
}
