// Package sqlfile reads Postgres schema files into the loose schema
// description that ddl.Normalize accepts.
package sqlfile

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/logger"
)

// Parser accumulates the objects declared by a sequence of DDL statements.
type Parser struct {
	schema string
	raw    *ddl.Raw
}

// Parse reads a Postgres DDL script. Objects without an explicit schema are
// placed in defaultSchema, or public when it is empty.
func Parse(sql, defaultSchema string) (*ddl.Raw, error) {
	p := NewParser(defaultSchema)
	if err := p.ParseSQL(sql); err != nil {
		return nil, err
	}
	return p.Raw(), nil
}

// NewParser returns an empty parser placing unqualified objects in
// defaultSchema, or public when it is empty.
func NewParser(defaultSchema string) *Parser {
	if defaultSchema == "" {
		defaultSchema = ddl.PostgreSQL.DefaultSchema()
	}
	return &Parser{
		schema: defaultSchema,
		raw:    &ddl.Raw{Dialect: ddl.PostgreSQL},
	}
}

// ParseSQL parses one script and adds its objects to the parser state.
// Scripts may be fed in dependency order across several calls.
func (p *Parser) ParseSQL(sql string) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("pg_query parse error: %w", err)
	}
	for i, stmt := range result.Stmts {
		if err := p.processStatement(stmt.Stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Raw returns the collected schema with unresolved references filled in.
func (p *Parser) Raw() *ddl.Raw {
	p.resolveEnumColumns()
	p.resolveReferencedKeys()
	return p.raw
}

func (p *Parser) processStatement(stmt *pg_query.Node) error {
	switch node := stmt.Node.(type) {
	case *pg_query.Node_CreateSchemaStmt:
		p.addSchema(node.CreateSchemaStmt.Schemaname)
	case *pg_query.Node_CreateEnumStmt:
		return p.parseCreateEnum(node.CreateEnumStmt)
	case *pg_query.Node_CreateSeqStmt:
		p.parseCreateSequence(node.CreateSeqStmt)
	case *pg_query.Node_CreateStmt:
		return p.parseCreateTable(node.CreateStmt)
	case *pg_query.Node_IndexStmt:
		return p.parseCreateIndex(node.IndexStmt)
	case *pg_query.Node_ViewStmt:
		return p.parseCreateView(node.ViewStmt)
	case *pg_query.Node_CreateTableAsStmt:
		return p.parseCreateMaterializedView(node.CreateTableAsStmt)
	case *pg_query.Node_CreateRoleStmt:
		p.parseCreateRole(node.CreateRoleStmt)
	case *pg_query.Node_CreatePolicyStmt:
		return p.parseCreatePolicy(node.CreatePolicyStmt)
	case *pg_query.Node_AlterTableStmt:
		return p.parseAlterTable(node.AlterTableStmt)
	default:
		logger.Get().Debug("Skipping unsupported statement", "type", fmt.Sprintf("%T", stmt.Node))
	}
	return nil
}

func (p *Parser) addSchema(name string) {
	if name == "" || name == ddl.PostgreSQL.DefaultSchema() || slices.Contains(p.raw.Schemas, name) {
		return
	}
	p.raw.Schemas = append(p.raw.Schemas, name)
}

// relation resolves a RangeVar to its schema and name.
func (p *Parser) relation(rv *pg_query.RangeVar) (string, string) {
	if rv == nil {
		return p.schema, ""
	}
	if rv.Schemaname != "" {
		return rv.Schemaname, rv.Relname
	}
	return p.schema, rv.Relname
}

// qualifiedName splits a dotted name list, e.g. the name of CREATE TYPE.
func (p *Parser) qualifiedName(names []*pg_query.Node) (string, string) {
	parts := stringList(names)
	switch len(parts) {
	case 0:
		return p.schema, ""
	case 1:
		return p.schema, parts[0]
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

func (p *Parser) table(schema, name string) *ddl.RawTable {
	return p.raw.Table(schema, name)
}

func (p *Parser) parseCreateEnum(stmt *pg_query.CreateEnumStmt) error {
	schema, name := p.qualifiedName(stmt.TypeName)
	if name == "" {
		return fmt.Errorf("enum without a name")
	}
	p.addSchema(schema)
	p.raw.Enums = append(p.raw.Enums, ddl.Enum{Schema: schema, Name: name, Values: stringList(stmt.Vals)})
	return nil
}

func (p *Parser) parseCreateSequence(stmt *pg_query.CreateSeqStmt) {
	schema, name := p.relation(stmt.Sequence)
	p.addSchema(schema)
	seq := ddl.Sequence{Schema: schema, Name: name}
	for _, opt := range defElems(stmt.Options) {
		value := defValue(opt.Arg)
		switch opt.Defname {
		case "start":
			seq.Start = value
		case "increment":
			seq.Increment = value
		case "minvalue":
			seq.Min = value
		case "maxvalue":
			seq.Max = value
		case "cache":
			seq.Cache = value
		case "cycle":
			seq.Cycle = value == "true"
		}
	}
	p.raw.Sequences = append(p.raw.Sequences, seq)
}

func (p *Parser) parseCreateTable(stmt *pg_query.CreateStmt) error {
	schema, name := p.relation(stmt.Relation)
	if p.table(schema, name) != nil {
		return fmt.Errorf("table %s.%s declared twice", schema, name)
	}
	p.addSchema(schema)
	t := ddl.RawTable{Schema: schema, Name: name}
	for _, elt := range stmt.TableElts {
		switch node := elt.Node.(type) {
		case *pg_query.Node_ColumnDef:
			if err := p.parseColumnDef(&t, node.ColumnDef); err != nil {
				return fmt.Errorf("column %s: %w", node.ColumnDef.Colname, err)
			}
		case *pg_query.Node_Constraint:
			if err := p.addConstraint(&t, node.Constraint); err != nil {
				return err
			}
		}
	}
	p.raw.Tables = append(p.raw.Tables, t)
	return nil
}

func (p *Parser) parseColumnDef(t *ddl.RawTable, def *pg_query.ColumnDef) error {
	col := ddl.RawColumn{Name: def.Colname, NotNull: def.IsNotNull}
	col.Type, col.TypeSchema = typeName(def.TypeName)

	for _, node := range def.Constraints {
		c := node.GetConstraint()
		if c == nil {
			continue
		}
		switch c.Contype {
		case pg_query.ConstrType_CONSTR_NOTNULL:
			col.NotNull = true
		case pg_query.ConstrType_CONSTR_NULL:
			col.NotNull = false
		case pg_query.ConstrType_CONSTR_DEFAULT:
			v, err := deparseExpr(c.RawExpr)
			if err != nil {
				return err
			}
			col.Default = &v
		case pg_query.ConstrType_CONSTR_IDENTITY:
			col.Identity = identity(c)
		case pg_query.ConstrType_CONSTR_GENERATED:
			expr, err := deparseExpr(c.RawExpr)
			if err != nil {
				return err
			}
			col.Generated = &ddl.Generated{Expression: expr, Type: ddl.GeneratedStored}
		case pg_query.ConstrType_CONSTR_PRIMARY:
			if c.Conname != "" {
				t.PrimaryKey = &ddl.PrimaryKey{Name: c.Conname, Columns: []string{col.Name}}
			} else {
				col.PrimaryKey = true
			}
		case pg_query.ConstrType_CONSTR_UNIQUE:
			if c.NullsNotDistinct {
				t.Uniques = append(t.Uniques, ddl.Unique{Name: c.Conname, Columns: []string{col.Name}, NullsNotDistinct: true})
			} else {
				col.Unique, col.UniqueName = true, c.Conname
			}
		case pg_query.ConstrType_CONSTR_CHECK:
			expr, err := deparseExpr(c.RawExpr)
			if err != nil {
				return err
			}
			t.Checks = append(t.Checks, ddl.Check{Name: c.Conname, Expression: expr})
		case pg_query.ConstrType_CONSTR_FOREIGN:
			t.ForeignKeys = append(t.ForeignKeys, p.foreignKey(c, []string{col.Name}))
		}
	}
	t.Columns = append(t.Columns, col)
	return nil
}

// addConstraint handles table level constraints from CREATE TABLE and
// ALTER TABLE ... ADD CONSTRAINT.
func (p *Parser) addConstraint(t *ddl.RawTable, c *pg_query.Constraint) error {
	switch c.Contype {
	case pg_query.ConstrType_CONSTR_PRIMARY:
		if t.PrimaryKey != nil || slices.ContainsFunc(t.Columns, func(c ddl.RawColumn) bool { return c.PrimaryKey }) {
			return fmt.Errorf("table %s has more than one primary key", t.Name)
		}
		t.PrimaryKey = &ddl.PrimaryKey{Name: c.Conname, Columns: stringList(c.Keys)}
	case pg_query.ConstrType_CONSTR_UNIQUE:
		t.Uniques = append(t.Uniques, ddl.Unique{Name: c.Conname, Columns: stringList(c.Keys), NullsNotDistinct: c.NullsNotDistinct})
	case pg_query.ConstrType_CONSTR_CHECK:
		expr, err := deparseExpr(c.RawExpr)
		if err != nil {
			return err
		}
		t.Checks = append(t.Checks, ddl.Check{Name: c.Conname, Expression: expr})
	case pg_query.ConstrType_CONSTR_FOREIGN:
		t.ForeignKeys = append(t.ForeignKeys, p.foreignKey(c, stringList(c.FkAttrs)))
	default:
		logger.Get().Debug("Skipping unsupported table constraint", "table", t.Name, "type", c.Contype.String())
	}
	return nil
}

func (p *Parser) foreignKey(c *pg_query.Constraint, columns []string) ddl.ForeignKey {
	toSchema, toTable := p.relation(c.Pktable)
	return ddl.ForeignKey{
		Name:      c.Conname,
		Columns:   columns,
		ToSchema:  toSchema,
		ToTable:   toTable,
		ToColumns: stringList(c.PkAttrs),
		OnUpdate:  referentialAction(c.FkUpdAction),
		OnDelete:  referentialAction(c.FkDelAction),
	}
}

// referentialAction maps pg_query's single letter action codes.
func referentialAction(action string) string {
	switch action {
	case "r":
		return "restrict"
	case "c":
		return "cascade"
	case "n":
		return "set null"
	case "d":
		return "set default"
	default:
		return "no action"
	}
}

func identity(c *pg_query.Constraint) *ddl.Identity {
	id := &ddl.Identity{Type: ddl.IdentityByDefault}
	if c.GeneratedWhen == "a" {
		id.Type = ddl.IdentityAlways
	}
	for _, opt := range defElems(c.Options) {
		value := defValue(opt.Arg)
		switch opt.Defname {
		case "start":
			id.Start = value
		case "increment":
			id.Increment = value
		case "minvalue":
			id.Min = value
		case "maxvalue":
			id.Max = value
		case "cache":
			id.Cache = value
		case "cycle":
			id.Cycle = value == "true"
		}
	}
	return id
}

func (p *Parser) parseCreateIndex(stmt *pg_query.IndexStmt) error {
	schema, table := p.relation(stmt.Relation)
	t := p.table(schema, table)
	if t == nil {
		return fmt.Errorf("index %s on unknown table %s.%s", stmt.Idxname, schema, table)
	}
	idx := ddl.Index{
		Name:         stmt.Idxname,
		Unique:       stmt.Unique,
		Method:       stmt.AccessMethod,
		Concurrently: stmt.Concurrent,
		With:         options(stmt.Options),
	}
	for _, node := range stmt.IndexParams {
		elem := node.GetIndexElem()
		if elem == nil {
			continue
		}
		col := ddl.IndexColumn{Value: elem.Name, Desc: elem.Ordering == pg_query.SortByDir_SORTBY_DESC}
		if elem.Expr != nil {
			expr, err := deparseExpr(elem.Expr)
			if err != nil {
				return err
			}
			col.Value, col.IsExpression = expr, true
		}
		switch elem.NullsOrdering {
		case pg_query.SortByNulls_SORTBY_NULLS_FIRST:
			col.Nulls = "first"
		case pg_query.SortByNulls_SORTBY_NULLS_LAST:
			col.Nulls = "last"
		}
		if opclass := stringList(elem.Opclass); len(opclass) > 0 {
			col.Opclass = opclass[len(opclass)-1]
		}
		idx.Columns = append(idx.Columns, col)
	}
	if stmt.WhereClause != nil {
		where, err := deparseExpr(stmt.WhereClause)
		if err != nil {
			return err
		}
		idx.Where = where
	}
	t.Indexes = append(t.Indexes, idx)
	return nil
}

func (p *Parser) parseCreateView(stmt *pg_query.ViewStmt) error {
	schema, name := p.relation(stmt.View)
	def, err := deparseStmt(stmt.Query)
	if err != nil {
		return fmt.Errorf("view %s: %w", name, err)
	}
	p.addSchema(schema)
	p.raw.Views = append(p.raw.Views, ddl.View{Schema: schema, Name: name, Definition: def, With: options(stmt.Options)})
	return nil
}

func (p *Parser) parseCreateMaterializedView(stmt *pg_query.CreateTableAsStmt) error {
	if stmt.Objtype != pg_query.ObjectType_OBJECT_MATVIEW || stmt.Into == nil {
		logger.Get().Debug("Skipping CREATE TABLE AS")
		return nil
	}
	schema, name := p.relation(stmt.Into.Rel)
	def, err := deparseStmt(stmt.Query)
	if err != nil {
		return fmt.Errorf("materialized view %s: %w", name, err)
	}
	p.addSchema(schema)
	p.raw.Views = append(p.raw.Views, ddl.View{
		Schema:       schema,
		Name:         name,
		Definition:   def,
		Materialized: true,
		With:         options(stmt.Into.Options),
	})
	return nil
}

func (p *Parser) parseCreateRole(stmt *pg_query.CreateRoleStmt) {
	if stmt.StmtType != pg_query.RoleStmtType_ROLESTMT_ROLE && stmt.StmtType != pg_query.RoleStmtType_ROLESTMT_USER {
		return
	}
	role := ddl.Role{Name: stmt.Role, Inherit: true}
	for _, opt := range defElems(stmt.Options) {
		enabled := defValue(opt.Arg) == "true"
		switch opt.Defname {
		case "createdb":
			role.CreateDB = enabled
		case "createrole":
			role.CreateRole = enabled
		case "inherit":
			role.Inherit = enabled
		}
	}
	p.raw.Roles = append(p.raw.Roles, role)
}

func (p *Parser) parseCreatePolicy(stmt *pg_query.CreatePolicyStmt) error {
	schema, table := p.relation(stmt.Table)
	pol := ddl.Policy{
		Schema: schema,
		Table:  table,
		Name:   stmt.PolicyName,
		As:     "permissive",
		For:    stmt.CmdName,
	}
	if !stmt.Permissive {
		pol.As = "restrictive"
	}
	for _, node := range stmt.Roles {
		if spec := node.GetRoleSpec(); spec != nil {
			pol.To = append(pol.To, roleName(spec))
		}
	}
	var err error
	if stmt.Qual != nil {
		if pol.Using, err = deparseExpr(stmt.Qual); err != nil {
			return err
		}
	}
	if stmt.WithCheck != nil {
		if pol.WithCheck, err = deparseExpr(stmt.WithCheck); err != nil {
			return err
		}
	}
	p.raw.Policies = append(p.raw.Policies, pol)
	return nil
}

func roleName(spec *pg_query.RoleSpec) string {
	switch spec.Roletype {
	case pg_query.RoleSpecType_ROLESPEC_PUBLIC:
		return "public"
	case pg_query.RoleSpecType_ROLESPEC_CURRENT_USER:
		return "current_user"
	case pg_query.RoleSpecType_ROLESPEC_SESSION_USER:
		return "session_user"
	case pg_query.RoleSpecType_ROLESPEC_CURRENT_ROLE:
		return "current_role"
	}
	return spec.Rolename
}

func (p *Parser) parseAlterTable(stmt *pg_query.AlterTableStmt) error {
	if stmt.Objtype != pg_query.ObjectType_OBJECT_TABLE {
		return nil
	}
	schema, name := p.relation(stmt.Relation)
	t := p.table(schema, name)
	if t == nil {
		return fmt.Errorf("alter of unknown table %s.%s", schema, name)
	}
	for _, node := range stmt.Cmds {
		cmd := node.GetAlterTableCmd()
		if cmd == nil {
			continue
		}
		switch cmd.Subtype {
		case pg_query.AlterTableType_AT_AddConstraint:
			if c := cmd.Def.GetConstraint(); c != nil {
				if err := p.addConstraint(t, c); err != nil {
					return err
				}
			}
		case pg_query.AlterTableType_AT_EnableRowSecurity, pg_query.AlterTableType_AT_ForceRowSecurity:
			t.RLSEnabled = true
		case pg_query.AlterTableType_AT_DisableRowSecurity:
			t.RLSEnabled = false
		default:
			logger.Get().Debug("Skipping unsupported ALTER TABLE command", "table", name, "command", cmd.Subtype.String())
		}
	}
	return nil
}

// resolveEnumColumns points unqualified column types at enums declared in
// the parser's default schema.
func (p *Parser) resolveEnumColumns() {
	declared := map[string]bool{}
	for _, e := range p.raw.Enums {
		if e.Schema == p.schema {
			declared[e.Name] = true
		}
	}
	for i := range p.raw.Tables {
		for j := range p.raw.Tables[i].Columns {
			col := &p.raw.Tables[i].Columns[j]
			if col.TypeSchema == "" && declared[strings.TrimRight(col.Type, "[]")] {
				col.TypeSchema = p.schema
			}
		}
	}
}

// resolveReferencedKeys fills the referenced columns of foreign keys written
// as REFERENCES t without a column list.
func (p *Parser) resolveReferencedKeys() {
	for i := range p.raw.Tables {
		for j := range p.raw.Tables[i].ForeignKeys {
			fk := &p.raw.Tables[i].ForeignKeys[j]
			if len(fk.ToColumns) > 0 {
				continue
			}
			if target := p.table(fk.ToSchema, fk.ToTable); target != nil {
				fk.ToColumns = primaryKeyColumns(target)
			}
		}
	}
}

func primaryKeyColumns(t *ddl.RawTable) []string {
	if t.PrimaryKey != nil {
		return slices.Clone(t.PrimaryKey.Columns)
	}
	var out []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}

// typeName renders a column type. Built-in names lose their pg_catalog
// qualifier; user types return their schema separately.
func typeName(tn *pg_query.TypeName) (string, string) {
	if tn == nil {
		return "", ""
	}
	parts := stringList(tn.Names)
	if len(parts) == 0 {
		return "", ""
	}
	var schema string
	name := parts[len(parts)-1]
	if len(parts) > 1 && parts[0] != "pg_catalog" {
		schema = parts[len(parts)-2]
	}

	if len(tn.Typmods) > 0 && name != "interval" {
		var mods []string
		for _, mod := range tn.Typmods {
			if c := mod.GetAConst(); c != nil {
				switch {
				case c.GetIval() != nil:
					mods = append(mods, strconv.Itoa(int(c.GetIval().Ival)))
				case c.GetFval() != nil:
					mods = append(mods, c.GetFval().Fval)
				}
			}
		}
		if len(mods) > 0 {
			name += "(" + strings.Join(mods, ",") + ")"
		}
	}
	return name + strings.Repeat("[]", len(tn.ArrayBounds)), schema
}

func stringList(nodes []*pg_query.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := n.GetString_(); s != nil {
			out = append(out, s.Sval)
		}
	}
	return out
}

func defElems(nodes []*pg_query.Node) []*pg_query.DefElem {
	out := make([]*pg_query.DefElem, 0, len(nodes))
	for _, n := range nodes {
		if d := n.GetDefElem(); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// defValue renders the argument of a DEFINE element. A missing argument on
// a boolean option means true.
func defValue(arg *pg_query.Node) string {
	if arg == nil {
		return "true"
	}
	switch v := arg.Node.(type) {
	case *pg_query.Node_Integer:
		return strconv.Itoa(int(v.Integer.Ival))
	case *pg_query.Node_Float:
		return v.Float.Fval
	case *pg_query.Node_Boolean:
		return strconv.FormatBool(v.Boolean.Boolval)
	case *pg_query.Node_String_:
		return v.String_.Sval
	case *pg_query.Node_TypeName:
		name, _ := typeName(v.TypeName)
		return name
	}
	return ""
}

// options renders WITH (...) storage parameters as "key=value" pairs.
func options(nodes []*pg_query.Node) string {
	var parts []string
	for _, opt := range defElems(nodes) {
		parts = append(parts, opt.Defname+"="+defValue(opt.Arg))
	}
	return strings.Join(parts, ", ")
}

// deparseExpr renders an expression node back to SQL by deparsing it as
// the only target of a SELECT.
func deparseExpr(expr *pg_query.Node) (string, error) {
	if expr == nil {
		return "", nil
	}
	target := &pg_query.Node{Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: expr}}}
	sel := &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: &pg_query.SelectStmt{
		TargetList:  []*pg_query.Node{target},
		LimitOption: pg_query.LimitOption_LIMIT_OPTION_DEFAULT,
		Op:          pg_query.SetOperation_SETOP_NONE,
	}}}
	out, err := deparseStmt(sel)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(out, "SELECT "), nil
}

func deparseStmt(stmt *pg_query.Node) (string, error) {
	out, err := pg_query.Deparse(&pg_query.ParseResult{Stmts: []*pg_query.RawStmt{{Stmt: stmt}}})
	if err != nil {
		return "", fmt.Errorf("failed to deparse: %w", err)
	}
	return strings.TrimSpace(out), nil
}
