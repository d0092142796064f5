package diff

import "github.com/ddlkit/ddlkit/internal/ddl"

// StatementKind enumerates the concrete Statement types.
type StatementKind int

const (
	KindCreateSchema StatementKind = iota
	KindDropSchema
	KindRenameSchema
	KindCreateEnum
	KindDropEnum
	KindRenameEnum
	KindAddEnumValue
	KindRenameEnumValue
	KindCreateSequence
	KindDropSequence
	KindRenameSequence
	KindAlterSequence
	KindCreateRole
	KindDropRole
	KindRenameRole
	KindAlterRole
	KindCreateTable
	KindDropTable
	KindRenameTable
	KindAddColumn
	KindDropColumn
	KindRenameColumn
	KindAlterColumn
	KindCreatePrimaryKey
	KindDropPrimaryKey
	KindRenamePrimaryKey
	KindCreateUnique
	KindDropUnique
	KindCreateCheck
	KindDropCheck
	KindCreateIndex
	KindDropIndex
	KindCreateForeignKey
	KindDropForeignKey
	KindEnableRLS
	KindDisableRLS
	KindCreatePolicy
	KindDropPolicy
	KindRenamePolicy
	KindAlterPolicy
	KindCreateView
	KindDropView
	KindRenameView
	KindAlterView
)

var statementKindNames = [...]string{
	KindCreateSchema:     "create_schema",
	KindDropSchema:       "drop_schema",
	KindRenameSchema:     "rename_schema",
	KindCreateEnum:       "create_enum",
	KindDropEnum:         "drop_enum",
	KindRenameEnum:       "rename_enum",
	KindAddEnumValue:     "add_enum_value",
	KindRenameEnumValue:  "rename_enum_value",
	KindCreateSequence:   "create_sequence",
	KindDropSequence:     "drop_sequence",
	KindRenameSequence:   "rename_sequence",
	KindAlterSequence:    "alter_sequence",
	KindCreateRole:       "create_role",
	KindDropRole:         "drop_role",
	KindRenameRole:       "rename_role",
	KindAlterRole:        "alter_role",
	KindCreateTable:      "create_table",
	KindDropTable:        "drop_table",
	KindRenameTable:      "rename_table",
	KindAddColumn:        "add_column",
	KindDropColumn:       "drop_column",
	KindRenameColumn:     "rename_column",
	KindAlterColumn:      "alter_column",
	KindCreatePrimaryKey: "create_primary_key",
	KindDropPrimaryKey:   "drop_primary_key",
	KindRenamePrimaryKey: "rename_primary_key",
	KindCreateUnique:     "create_unique",
	KindDropUnique:       "drop_unique",
	KindCreateCheck:      "create_check",
	KindDropCheck:        "drop_check",
	KindCreateIndex:      "create_index",
	KindDropIndex:        "drop_index",
	KindCreateForeignKey: "create_foreign_key",
	KindDropForeignKey:   "drop_foreign_key",
	KindEnableRLS:        "enable_rls",
	KindDisableRLS:       "disable_rls",
	KindCreatePolicy:     "create_policy",
	KindDropPolicy:       "drop_policy",
	KindRenamePolicy:     "rename_policy",
	KindAlterPolicy:      "alter_policy",
	KindCreateView:       "create_view",
	KindDropView:         "drop_view",
	KindRenameView:       "rename_view",
	KindAlterView:        "alter_view",
}

func (k StatementKind) String() string {
	if k < 0 || int(k) >= len(statementKindNames) {
		return "unknown"
	}
	return statementKindNames[k]
}

// Statement is one abstract DDL operation. The set of implementations is
// closed; renderers switch over it exhaustively.
type Statement interface {
	Kind() StatementKind
	// Subject is the identity of the entity the statement acts on, using
	// the new name for renames.
	Subject() ddl.Key
	statement()
}

type CreateSchema struct{ Schema *ddl.Schema }
type DropSchema struct{ Schema *ddl.Schema }
type RenameSchema struct{ From, To *ddl.Schema }

type CreateEnum struct{ Enum *ddl.Enum }
type DropEnum struct{ Enum *ddl.Enum }

// RenameEnum renames an enum and moves it when the schema differs.
type RenameEnum struct{ From, To *ddl.Enum }

// AddEnumValue adds Value to Enum. Before is the label it is inserted in
// front of, empty when appended.
type AddEnumValue struct {
	Enum   *ddl.Enum
	Value  string
	Before string
}

type RenameEnumValue struct {
	Enum *ddl.Enum
	From string
	To   string
}

type CreateSequence struct{ Sequence *ddl.Sequence }
type DropSequence struct{ Sequence *ddl.Sequence }
type RenameSequence struct{ From, To *ddl.Sequence }
type AlterSequence struct{ From, To *ddl.Sequence }

type CreateRole struct{ Role *ddl.Role }
type DropRole struct{ Role *ddl.Role }
type RenameRole struct{ From, To *ddl.Role }
type AlterRole struct{ From, To *ddl.Role }

// CreateTable carries the table with its columns and inline constraints.
// Indexes, foreign keys and policies follow as separate statements.
type CreateTable struct {
	Table      *ddl.Table
	Columns    []*ddl.Column
	PrimaryKey *ddl.PrimaryKey
	Uniques    []*ddl.Unique
	Checks     []*ddl.Check
}

type DropTable struct{ Table *ddl.Table }

// RenameTable renames a table and moves it when the schema differs.
type RenameTable struct{ From, To *ddl.Table }

type AddColumn struct{ Column *ddl.Column }
type DropColumn struct{ Column *ddl.Column }
type RenameColumn struct{ From, To *ddl.Column }

// ColumnChange is the set of column attributes an AlterColumn changes.
type ColumnChange uint8

const (
	ChangeType ColumnChange = 1 << iota
	ChangeNotNull
	ChangeDefault
	ChangeIdentity
	ChangeGenerated
	ChangeAutoIncrement
)

func (c ColumnChange) Has(f ColumnChange) bool { return c&f != 0 }

// AlterColumn carries the full attribute delta of one column. From is the
// column as it exists before the statement runs, after earlier renames.
type AlterColumn struct {
	From    *ddl.Column
	To      *ddl.Column
	Changes ColumnChange
}

type CreatePrimaryKey struct{ PrimaryKey *ddl.PrimaryKey }
type DropPrimaryKey struct{ PrimaryKey *ddl.PrimaryKey }

// RenamePrimaryKey renames a primary key constraint whose columns are
// unchanged, typically the default name following a table rename.
type RenamePrimaryKey struct{ From, To *ddl.PrimaryKey }

type CreateUnique struct{ Unique *ddl.Unique }
type DropUnique struct{ Unique *ddl.Unique }
type CreateCheck struct{ Check *ddl.Check }
type DropCheck struct{ Check *ddl.Check }
type CreateIndex struct{ Index *ddl.Index }
type DropIndex struct{ Index *ddl.Index }
type CreateForeignKey struct{ ForeignKey *ddl.ForeignKey }
type DropForeignKey struct{ ForeignKey *ddl.ForeignKey }

type EnableRLS struct{ Table *ddl.Table }
type DisableRLS struct{ Table *ddl.Table }

type CreatePolicy struct{ Policy *ddl.Policy }
type DropPolicy struct{ Policy *ddl.Policy }
type RenamePolicy struct{ From, To *ddl.Policy }
type AlterPolicy struct{ From, To *ddl.Policy }

type CreateView struct{ View *ddl.View }
type DropView struct{ View *ddl.View }
type RenameView struct{ From, To *ddl.View }

// AlterView changes storage options of a materialized view.
type AlterView struct{ From, To *ddl.View }

func (*CreateSchema) Kind() StatementKind     { return KindCreateSchema }
func (*DropSchema) Kind() StatementKind       { return KindDropSchema }
func (*RenameSchema) Kind() StatementKind     { return KindRenameSchema }
func (*CreateEnum) Kind() StatementKind       { return KindCreateEnum }
func (*DropEnum) Kind() StatementKind         { return KindDropEnum }
func (*RenameEnum) Kind() StatementKind       { return KindRenameEnum }
func (*AddEnumValue) Kind() StatementKind     { return KindAddEnumValue }
func (*RenameEnumValue) Kind() StatementKind  { return KindRenameEnumValue }
func (*CreateSequence) Kind() StatementKind   { return KindCreateSequence }
func (*DropSequence) Kind() StatementKind     { return KindDropSequence }
func (*RenameSequence) Kind() StatementKind   { return KindRenameSequence }
func (*AlterSequence) Kind() StatementKind    { return KindAlterSequence }
func (*CreateRole) Kind() StatementKind       { return KindCreateRole }
func (*DropRole) Kind() StatementKind         { return KindDropRole }
func (*RenameRole) Kind() StatementKind       { return KindRenameRole }
func (*AlterRole) Kind() StatementKind        { return KindAlterRole }
func (*CreateTable) Kind() StatementKind      { return KindCreateTable }
func (*DropTable) Kind() StatementKind        { return KindDropTable }
func (*RenameTable) Kind() StatementKind      { return KindRenameTable }
func (*AddColumn) Kind() StatementKind        { return KindAddColumn }
func (*DropColumn) Kind() StatementKind       { return KindDropColumn }
func (*RenameColumn) Kind() StatementKind     { return KindRenameColumn }
func (*AlterColumn) Kind() StatementKind      { return KindAlterColumn }
func (*CreatePrimaryKey) Kind() StatementKind { return KindCreatePrimaryKey }
func (*DropPrimaryKey) Kind() StatementKind   { return KindDropPrimaryKey }
func (*RenamePrimaryKey) Kind() StatementKind { return KindRenamePrimaryKey }
func (*CreateUnique) Kind() StatementKind     { return KindCreateUnique }
func (*DropUnique) Kind() StatementKind       { return KindDropUnique }
func (*CreateCheck) Kind() StatementKind      { return KindCreateCheck }
func (*DropCheck) Kind() StatementKind        { return KindDropCheck }
func (*CreateIndex) Kind() StatementKind      { return KindCreateIndex }
func (*DropIndex) Kind() StatementKind        { return KindDropIndex }
func (*CreateForeignKey) Kind() StatementKind { return KindCreateForeignKey }
func (*DropForeignKey) Kind() StatementKind   { return KindDropForeignKey }
func (*EnableRLS) Kind() StatementKind        { return KindEnableRLS }
func (*DisableRLS) Kind() StatementKind       { return KindDisableRLS }
func (*CreatePolicy) Kind() StatementKind     { return KindCreatePolicy }
func (*DropPolicy) Kind() StatementKind       { return KindDropPolicy }
func (*RenamePolicy) Kind() StatementKind     { return KindRenamePolicy }
func (*AlterPolicy) Kind() StatementKind      { return KindAlterPolicy }
func (*CreateView) Kind() StatementKind       { return KindCreateView }
func (*DropView) Kind() StatementKind         { return KindDropView }
func (*RenameView) Kind() StatementKind       { return KindRenameView }
func (*AlterView) Kind() StatementKind        { return KindAlterView }

func (s *CreateSchema) Subject() ddl.Key     { return s.Schema.Key() }
func (s *DropSchema) Subject() ddl.Key       { return s.Schema.Key() }
func (s *RenameSchema) Subject() ddl.Key     { return s.To.Key() }
func (s *CreateEnum) Subject() ddl.Key       { return s.Enum.Key() }
func (s *DropEnum) Subject() ddl.Key         { return s.Enum.Key() }
func (s *RenameEnum) Subject() ddl.Key       { return s.To.Key() }
func (s *AddEnumValue) Subject() ddl.Key     { return s.Enum.Key() }
func (s *RenameEnumValue) Subject() ddl.Key  { return s.Enum.Key() }
func (s *CreateSequence) Subject() ddl.Key   { return s.Sequence.Key() }
func (s *DropSequence) Subject() ddl.Key     { return s.Sequence.Key() }
func (s *RenameSequence) Subject() ddl.Key   { return s.To.Key() }
func (s *AlterSequence) Subject() ddl.Key    { return s.To.Key() }
func (s *CreateRole) Subject() ddl.Key       { return s.Role.Key() }
func (s *DropRole) Subject() ddl.Key         { return s.Role.Key() }
func (s *RenameRole) Subject() ddl.Key       { return s.To.Key() }
func (s *AlterRole) Subject() ddl.Key        { return s.To.Key() }
func (s *CreateTable) Subject() ddl.Key      { return s.Table.Key() }
func (s *DropTable) Subject() ddl.Key        { return s.Table.Key() }
func (s *RenameTable) Subject() ddl.Key      { return s.To.Key() }
func (s *AddColumn) Subject() ddl.Key        { return s.Column.Key() }
func (s *DropColumn) Subject() ddl.Key       { return s.Column.Key() }
func (s *RenameColumn) Subject() ddl.Key     { return s.To.Key() }
func (s *AlterColumn) Subject() ddl.Key      { return s.To.Key() }
func (s *CreatePrimaryKey) Subject() ddl.Key { return s.PrimaryKey.Key() }
func (s *DropPrimaryKey) Subject() ddl.Key   { return s.PrimaryKey.Key() }
func (s *RenamePrimaryKey) Subject() ddl.Key { return s.To.Key() }
func (s *CreateUnique) Subject() ddl.Key     { return s.Unique.Key() }
func (s *DropUnique) Subject() ddl.Key       { return s.Unique.Key() }
func (s *CreateCheck) Subject() ddl.Key      { return s.Check.Key() }
func (s *DropCheck) Subject() ddl.Key        { return s.Check.Key() }
func (s *CreateIndex) Subject() ddl.Key      { return s.Index.Key() }
func (s *DropIndex) Subject() ddl.Key        { return s.Index.Key() }
func (s *CreateForeignKey) Subject() ddl.Key { return s.ForeignKey.Key() }
func (s *DropForeignKey) Subject() ddl.Key   { return s.ForeignKey.Key() }
func (s *EnableRLS) Subject() ddl.Key        { return s.Table.Key() }
func (s *DisableRLS) Subject() ddl.Key       { return s.Table.Key() }
func (s *CreatePolicy) Subject() ddl.Key     { return s.Policy.Key() }
func (s *DropPolicy) Subject() ddl.Key       { return s.Policy.Key() }
func (s *RenamePolicy) Subject() ddl.Key     { return s.To.Key() }
func (s *AlterPolicy) Subject() ddl.Key      { return s.To.Key() }
func (s *CreateView) Subject() ddl.Key       { return s.View.Key() }
func (s *DropView) Subject() ddl.Key         { return s.View.Key() }
func (s *RenameView) Subject() ddl.Key       { return s.To.Key() }
func (s *AlterView) Subject() ddl.Key        { return s.To.Key() }

func (*CreateSchema) statement()     {}
func (*DropSchema) statement()       {}
func (*RenameSchema) statement()     {}
func (*CreateEnum) statement()       {}
func (*DropEnum) statement()         {}
func (*RenameEnum) statement()       {}
func (*AddEnumValue) statement()     {}
func (*RenameEnumValue) statement()  {}
func (*CreateSequence) statement()   {}
func (*DropSequence) statement()     {}
func (*RenameSequence) statement()   {}
func (*AlterSequence) statement()    {}
func (*CreateRole) statement()       {}
func (*DropRole) statement()         {}
func (*RenameRole) statement()       {}
func (*AlterRole) statement()        {}
func (*CreateTable) statement()      {}
func (*DropTable) statement()        {}
func (*RenameTable) statement()      {}
func (*AddColumn) statement()        {}
func (*DropColumn) statement()       {}
func (*RenameColumn) statement()     {}
func (*AlterColumn) statement()      {}
func (*CreatePrimaryKey) statement() {}
func (*DropPrimaryKey) statement()   {}
func (*RenamePrimaryKey) statement() {}
func (*CreateUnique) statement()     {}
func (*DropUnique) statement()       {}
func (*CreateCheck) statement()      {}
func (*DropCheck) statement()        {}
func (*CreateIndex) statement()      {}
func (*DropIndex) statement()        {}
func (*CreateForeignKey) statement() {}
func (*DropForeignKey) statement()   {}
func (*EnableRLS) statement()        {}
func (*DisableRLS) statement()       {}
func (*CreatePolicy) statement()     {}
func (*DropPolicy) statement()       {}
func (*RenamePolicy) statement()     {}
func (*AlterPolicy) statement()      {}
func (*CreateView) statement()       {}
func (*DropView) statement()         {}
func (*RenameView) statement()       {}
func (*AlterView) statement()        {}
