package entry

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/tuple"
	"pagedb/pkg/utils/bytebuf"
)

// OpType identifies the operation an action records. It is the first
// field of every action payload.
type OpType uint32

const (
	UnknownOp OpType = iota
	InsertOp
	UpdateOp
	DeleteOp
	SelectTableOp
	SelectOp
	CreateTableOp
	CreateDatabaseOp
	DropDatabaseOp
	DropTableOp
)

func (o OpType) String() string {
	switch o {
	case InsertOp:
		return "insert"
	case UpdateOp:
		return "update"
	case DeleteOp:
		return "delete"
	case SelectTableOp:
		return "select_table"
	case SelectOp:
		return "select"
	case CreateTableOp:
		return "create_table"
	case CreateDatabaseOp:
		return "create_database"
	case DropDatabaseOp:
		return "drop_database"
	case DropTableOp:
		return "drop_table"
	default:
		return fmt.Sprintf("OpType(%d)", uint32(o))
	}
}

// ActionType returns the action family the operation belongs to.
func (o OpType) ActionType() ActionType {
	switch o {
	case InsertOp, UpdateOp, DeleteOp, SelectTableOp, SelectOp:
		return DataAction
	case CreateTableOp, CreateDatabaseOp, DropDatabaseOp, DropTableOp:
		return SchemaAction
	default:
		return UnknownAction
	}
}

// ActionType is the family of an action, stored in the entry preamble.
type ActionType uint32

const (
	UnknownAction ActionType = iota
	DataAction
	SchemaAction
	PermissionAction
)

func (a ActionType) String() string {
	switch a {
	case DataAction:
		return "data"
	case SchemaAction:
		return "schema"
	case PermissionAction:
		return "permission"
	default:
		return fmt.Sprintf("ActionType(%d)", uint32(a))
	}
}

// AddressSize is the encoded size of the address that follows the op type:
//
//	[DatabaseID:16][TableID:4][PageID:4][RowID:4][RowOffset:4][SchemaID:16]
const AddressSize = 48

// Action is the payload of a transaction entry. Which fields are set
// depends on Op:
//   - Insert, Delete: Row holds the row in transaction format
//   - Update: Before and After hold both versions of the row
//   - SelectTable, Select: WholeTable marks a whole-table read
//   - CreateTable: Table holds the new table's schema, followed on disk by
//     its ObjectID and StoragePolicy, which the schema binary form omits
//   - CreateDatabase, DropDatabase, DropTable: Name holds the object name
type Action struct {
	Op         OpType
	Address    primitives.SQLAddress
	Row        []byte
	Before     []byte
	After      []byte
	WholeTable bool
	Table      *schema.TableSchema
	Name       string
}

// NewInsert records a row written at addr.
func NewInsert(ts *schema.TableSchema, addr primitives.RowAddress, row *tuple.Row) (Action, error) {
	data, err := row.GetRowInTransactionBinaryFormat()
	if err != nil {
		return Action{}, err
	}
	return Action{Op: InsertOp, Address: sqlAddress(ts, addr), Row: data}, nil
}

// NewUpdate records a row at addr changing from before to after.
func NewUpdate(ts *schema.TableSchema, addr primitives.RowAddress, before, after *tuple.Row) (Action, error) {
	b, err := before.GetRowInTransactionBinaryFormat()
	if err != nil {
		return Action{}, err
	}
	a, err := after.GetRowInTransactionBinaryFormat()
	if err != nil {
		return Action{}, err
	}
	return Action{Op: UpdateOp, Address: sqlAddress(ts, addr), Before: b, After: a}, nil
}

// NewDelete records the deletion of row at addr. The row bytes are kept
// for undo and audit.
func NewDelete(ts *schema.TableSchema, addr primitives.RowAddress, row *tuple.Row) (Action, error) {
	data, err := row.GetRowInTransactionBinaryFormat()
	if err != nil {
		return Action{}, err
	}
	return Action{Op: DeleteOp, Address: sqlAddress(ts, addr), Row: data}, nil
}

func NewSelectTable(ts *schema.TableSchema) Action {
	return Action{Op: SelectTableOp, Address: sqlAddress(ts, primitives.RowAddress{}), WholeTable: true}
}

func NewSelect(ts *schema.TableSchema, addr primitives.RowAddress) Action {
	return Action{Op: SelectOp, Address: sqlAddress(ts, addr)}
}

func NewCreateTable(ts *schema.TableSchema) Action {
	return Action{Op: CreateTableOp, Address: sqlAddress(ts, primitives.RowAddress{}), Table: ts}
}

func NewDropTable(ts *schema.TableSchema) Action {
	return Action{Op: DropTableOp, Address: sqlAddress(ts, primitives.RowAddress{}), Name: ts.TableName}
}

func NewCreateDatabase(id primitives.DatabaseID, name string) Action {
	return Action{Op: CreateDatabaseOp, Address: primitives.SQLAddress{DatabaseID: id}, Name: name}
}

func NewDropDatabase(id primitives.DatabaseID, name string) Action {
	return Action{Op: DropDatabaseOp, Address: primitives.SQLAddress{DatabaseID: id}, Name: name}
}

// Type returns the action family of a.
func (a Action) Type() ActionType {
	return a.Op.ActionType()
}

// Encode returns the binary payload: op type, address, then the op data.
func (a Action) Encode() ([]byte, error) {
	w := bytebuf.NewWriter(4 + AddressSize + len(a.Row) + len(a.Before) + len(a.After) + 8)
	w.Uint32(uint32(a.Op))
	writeAddress(w, a.Address)

	switch a.Op {
	case InsertOp, DeleteOp:
		w.LenBytes(a.Row)
	case UpdateOp:
		w.LenBytes(a.Before)
		w.LenBytes(a.After)
	case SelectTableOp, SelectOp:
		w.Bool(a.WholeTable)
	case CreateTableOp:
		if a.Table == nil {
			return nil, dberr.New(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
				"create table action has no schema").In("Encode", actionComponent)
		}
		w.Raw(a.Table.Serialize())
		w.GUID(a.Table.ObjectID)
		w.Int32(int32(a.Table.StoragePolicy))
	case CreateDatabaseOp, DropDatabaseOp, DropTableOp:
		w.Text(norm.NFC.String(a.Name))
	default:
		return nil, unknownOp(a.Op, "Encode")
	}
	return w.Bytes(), nil
}

// DecodeAction parses an action payload. data must hold exactly one
// action.
func DecodeAction(data []byte) (Action, error) {
	r := bytebuf.NewReader(data)
	a := Action{Op: OpType(r.Uint32())}
	a.Address = readAddress(r)
	if err := r.Err(); err != nil {
		return Action{}, dberr.Wrap(err, dberr.CodeCorruptData, "DecodeAction", actionComponent)
	}

	switch a.Op {
	case InsertOp, DeleteOp:
		a.Row = r.LenBytes()
	case UpdateOp:
		a.Before = r.LenBytes()
		a.After = r.LenBytes()
	case SelectTableOp, SelectOp:
		a.WholeTable = r.Bool()
	case CreateTableOp:
		ts, err := schema.ReadTableSchema(r)
		if err != nil {
			return Action{}, err
		}
		ts.ObjectID = r.GUID()
		ts.StoragePolicy = schema.StoragePolicy(r.Int32())
		if r.Err() == nil && !ts.StoragePolicy.IsValid() {
			return Action{}, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeUnknownType,
				"table '%s' has unknown storage policy %d", ts.TableName, int32(ts.StoragePolicy)).
				In("DecodeAction", actionComponent)
		}
		a.Table = ts
	case CreateDatabaseOp, DropDatabaseOp, DropTableOp:
		a.Name = r.Text()
	default:
		return Action{}, unknownOp(a.Op, "DecodeAction")
	}

	if err := r.Err(); err != nil {
		return Action{}, dberr.Wrap(err, dberr.CodeCorruptData, "DecodeAction", actionComponent)
	}
	if r.Remaining() != 0 {
		return Action{}, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"%s action has %d trailing bytes", a.Op, r.Remaining()).In("DecodeAction", actionComponent)
	}
	return a, nil
}

// BeforeImage decodes the row as it was before the action: the deleted
// row or the old version of an updated one. It returns nil for other ops.
func (a Action) BeforeImage(ts *schema.TableSchema) (*tuple.Row, error) {
	switch a.Op {
	case DeleteOp:
		return tuple.ParseRow(ts, a.Row)
	case UpdateOp:
		return tuple.ParseRow(ts, a.Before)
	default:
		return nil, nil
	}
}

// AfterImage decodes the row as the action left it: the inserted row or
// the new version of an updated one. It returns nil for other ops.
func (a Action) AfterImage(ts *schema.TableSchema) (*tuple.Row, error) {
	switch a.Op {
	case InsertOp:
		return tuple.ParseRow(ts, a.Row)
	case UpdateOp:
		return tuple.ParseRow(ts, a.After)
	default:
		return nil, nil
	}
}

func sqlAddress(ts *schema.TableSchema, addr primitives.RowAddress) primitives.SQLAddress {
	return primitives.SQLAddress{
		DatabaseID: ts.DatabaseID,
		TableID:    ts.TableID,
		PageID:     addr.PageID,
		RowID:      addr.RowID,
		RowOffset:  addr.RowOffset,
		SchemaID:   ts.Schema.ID,
	}
}

func writeAddress(w *bytebuf.Writer, a primitives.SQLAddress) {
	w.GUID(a.DatabaseID)
	w.Uint32(uint32(a.TableID))
	w.Uint32(uint32(a.PageID))
	w.Uint32(uint32(a.RowID))
	w.Uint32(uint32(a.RowOffset))
	w.GUID(a.SchemaID)
}

func readAddress(r *bytebuf.Reader) primitives.SQLAddress {
	return primitives.SQLAddress{
		DatabaseID: r.GUID(),
		TableID:    primitives.TableID(r.Uint32()),
		PageID:     primitives.PageID(r.Uint32()),
		RowID:      primitives.RowID(r.Uint32()),
		RowOffset:  primitives.Offset(r.Uint32()),
		SchemaID:   r.GUID(),
	}
}

func unknownOp(op OpType, where string) error {
	return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeUnknownType,
		"unknown action op type %d", uint32(op)).In(where, actionComponent)
}
