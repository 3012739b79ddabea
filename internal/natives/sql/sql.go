// Package sql is a Host FFI domain module (spec.md §6): it wraps
// database/sql behind four native callables a script can import by name,
// db_open/db_query/db_exec/db_close.
//
// Grounded on internal/database/database.go's DBManager (connect-by-DSN,
// query, exec, close, one *sql.DB per connection ID); the blank driver
// imports are the same four the teacher registers.
package sql

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"quill/internal/natives"
	"quill/internal/vm"
)

// handles is the side table mapping small integer handles to open
// connections: quill values cannot hold a raw *sql.DB (spec.md's value
// model has no host-pointer kind), so db_open returns an index into this
// table rather than the connection itself.
type handles struct {
	mu   sync.Mutex
	next int64
	conn map[int64]*sql.DB
}

var h = &handles{conn: make(map[int64]*sql.DB)}

func (h *handles) put(db *sql.DB) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.conn[id] = db
	return id
}

func (h *handles) get(id int64) (*sql.DB, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	db, ok := h.conn[id]
	return db, ok
}

func (h *handles) drop(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conn, id)
}

// Register adds db_open/db_query/db_exec/db_close to reg.
func Register(reg *natives.Registry) {
	reg.Register("db_open", dbOpen)
	reg.Register("db_query", dbQuery)
	reg.Register("db_exec", dbExec)
	reg.Register("db_close", dbClose)
}

func argStr(args []vm.Value, i int) (string, error) {
	if i >= len(args) || !args[i].IsStr() {
		return "", fmt.Errorf("expects a str argument at position %d", i)
	}
	return args[i].Obj.Str, nil
}

func argInt(args []vm.Value, i int) (int64, error) {
	if i >= len(args) || !args[i].IsInt() {
		return 0, fmt.Errorf("expects an int argument at position %d", i)
	}
	return args[i].I, nil
}

// dbOpen(driver, dsn) -> int handle
func dbOpen(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	driver, err := argStr(args, 0)
	if err != nil {
		return vm.Value{}, err
	}
	dsn, err := argStr(args, 1)
	if err != nil {
		return vm.Value{}, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return vm.Value{}, fmt.Errorf("db_open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return vm.Value{}, fmt.Errorf("db_open: %w", err)
	}
	return vm.Int(h.put(db)), nil
}

// dbQuery(handle, sql, ...args) -> list of map (one map per row, column
// name -> value), mirroring the teacher's goToValue conversion table.
func dbQuery(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) < 2 {
		return vm.Value{}, fmt.Errorf("db_query expects at least 2 arguments")
	}
	handle, err := argInt(args, 0)
	if err != nil {
		return vm.Value{}, err
	}
	query, err := argStr(args, 1)
	if err != nil {
		return vm.Value{}, err
	}
	db, ok := h.get(handle)
	if !ok {
		return vm.Value{}, fmt.Errorf("db_query: unknown handle %d", handle)
	}
	rows, err := db.Query(query, goArgs(args[2:])...)
	if err != nil {
		return vm.Value{}, fmt.Errorf("db_query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return vm.Value{}, fmt.Errorf("db_query: %w", err)
	}

	var out []vm.Value
	for rows.Next() {
		scanTargets := make([]interface{}, len(cols))
		scanVals := make([]interface{}, len(cols))
		for i := range scanTargets {
			scanTargets[i] = &scanVals[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return vm.Value{}, fmt.Errorf("db_query: %w", err)
		}
		keys := make([]vm.Value, len(cols))
		vals := make([]vm.Value, len(cols))
		for i, c := range cols {
			keys[i] = vm.StrValue(c, vmRef.Heap)
			vals[i] = goToValue(scanVals[i], vmRef)
		}
		out = append(out, vm.MapValue(keys, vals, vmRef.Heap))
	}
	return vm.ListValue(out, vmRef.Heap), rows.Err()
}

// dbExec(handle, sql, ...args) -> int (rows affected)
func dbExec(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) < 2 {
		return vm.Value{}, fmt.Errorf("db_exec expects at least 2 arguments")
	}
	handle, err := argInt(args, 0)
	if err != nil {
		return vm.Value{}, err
	}
	query, err := argStr(args, 1)
	if err != nil {
		return vm.Value{}, err
	}
	db, ok := h.get(handle)
	if !ok {
		return vm.Value{}, fmt.Errorf("db_exec: unknown handle %d", handle)
	}
	res, err := db.Exec(query, goArgs(args[2:])...)
	if err != nil {
		return vm.Value{}, fmt.Errorf("db_exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return vm.Value{}, fmt.Errorf("db_exec: %w", err)
	}
	return vm.Int(n), nil
}

// dbClose(handle) -> null
func dbClose(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	handle, err := argInt(args, 0)
	if err != nil {
		return vm.Value{}, err
	}
	db, ok := h.get(handle)
	if !ok {
		return vm.Value{}, fmt.Errorf("db_close: unknown handle %d", handle)
	}
	h.drop(handle)
	return vm.Null(), db.Close()
}

// goArgs converts quill values into driver bind parameters.
func goArgs(args []vm.Value) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = valueToGo(a)
	}
	return out
}

func valueToGo(v vm.Value) interface{} {
	switch {
	case v.IsNull():
		return nil
	case v.IsBool():
		return v.I != 0
	case v.IsInt():
		return v.I
	case v.IsNum():
		return v.F
	case v.IsStr():
		return v.Obj.Str
	default:
		return fmt.Sprintf("%v", v)
	}
}

func goToValue(x interface{}, vmRef *vm.VM) vm.Value {
	switch t := x.(type) {
	case nil:
		return vm.Null()
	case bool:
		return vm.Bool(t)
	case int64:
		return vm.Int(t)
	case float64:
		return vm.Num(t)
	case []byte:
		return vm.StrValue(string(t), vmRef.Heap)
	case string:
		return vm.StrValue(t, vmRef.Heap)
	default:
		return vm.StrValue(fmt.Sprintf("%v", t), vmRef.Heap)
	}
}
