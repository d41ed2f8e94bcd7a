package dataset

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver backing every dataset. It is the
// stock sqlite3 driver plus the str_* functions filter expressions rely on.
const DriverName = "sqlite3_listinsight"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: registerFunctions,
	})
}

func registerFunctions(conn *sqlite3.SQLiteConn) error {
	funcs := map[string]func(interface{}, string) int64{
		"str_contains":   strContains,
		"str_startswith": strStartsWith,
		"str_endswith":   strEndsWith,
	}
	for name, fn := range funcs {
		if err := conn.RegisterFunc(name, fn, true); err != nil {
			return err
		}
	}
	return nil
}

// String methods evaluate to false on NULL instead of raising.

func strContains(v interface{}, sub string) int64 {
	s, ok := sqlText(v)
	return boolInt(ok && strings.Contains(s, sub))
}

func strStartsWith(v interface{}, prefix string) int64 {
	s, ok := sqlText(v)
	return boolInt(ok && strings.HasPrefix(s, prefix))
}

func strEndsWith(v interface{}, suffix string) int64 {
	s, ok := sqlText(v)
	return boolInt(ok && strings.HasSuffix(s, suffix))
}

func sqlText(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return FormatFloat(x), true
	default:
		return "", false
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
