package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/rebeliceyang/listinsight/internal/models"
)

// LoadParquet reads a parquet file through Arrow
func LoadParquet(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = f.Close() }()

	pf, err := file.NewParquetReader(f, file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer func() { _ = pf.Close() }()

	mem := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	defer table.Release()

	schema := table.Schema()
	columns := make([]models.Column, schema.NumFields())
	rows := make([]Row, table.NumRows())
	for i := range rows {
		rows[i] = make(Row, len(columns))
	}

	for c := 0; c < schema.NumFields(); c++ {
		field := schema.Field(c)
		columns[c] = models.Column{Name: field.Name, Type: arrowColumnType(field.Type)}

		offset := 0
		for _, chunk := range table.Column(c).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				rows[offset+i][c] = arrowValue(chunk, i)
			}
			offset += chunk.Len()
		}
	}

	ds, err := New(NameFromPath(path), columns, rows)
	if err != nil {
		return nil, err
	}
	ds.SetSource(path)
	return ds, nil
}

func arrowColumnType(dt arrow.DataType) models.ColumnType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.DECIMAL128, arrow.DECIMAL256:
		return models.TypeNumeric
	default:
		return models.TypeText
	}
}

// arrowValue converts one Arrow cell into a snapshot cell
func arrowValue(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}

	switch a := col.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	default:
		if arrowColumnType(col.DataType()) == models.TypeNumeric {
			if v, ok := ParseNumber(col.ValueStr(i)); ok {
				return v
			}
			return nil
		}
		return col.ValueStr(i)
	}
}

// WriteParquet writes the full unfiltered snapshot to path
func WriteParquet(ds *Dataset, path string) error {
	return WriteParquetRows(ds, ds.All(), path)
}

// WriteParquetRows writes the selected snapshot rows to path. Numeric columns
// are stored as int64 unless a fractional value is present.
func WriteParquetRows(ds *Dataset, positions []int, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parquet directory: %w", err)
	}

	mem := memory.NewGoAllocator()
	fields := make([]arrow.Field, len(ds.columns))
	arrays := make([]arrow.Array, len(ds.columns))
	defer func() {
		for _, a := range arrays {
			if a != nil {
				a.Release()
			}
		}
	}()

	for c, col := range ds.columns {
		fields[c] = arrow.Field{Name: col.Name, Type: parquetType(ds, c, positions), Nullable: true}
		arrays[c] = buildArray(mem, fields[c].Type, ds, c, positions)
	}

	schema := arrow.NewSchema(fields, nil)
	cols := make([]arrow.Column, len(arrays))
	for c, a := range arrays {
		cols[c] = *arrow.NewColumn(fields[c], arrow.NewChunked(a.DataType(), []arrow.Array{a}))
	}
	table := array.NewTable(schema, cols, int64(len(positions)))
	defer table.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer func() { _ = f.Close() }()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	if err := pqarrow.WriteTable(table, f, 64*1024, props, arrowProps); err != nil {
		return fmt.Errorf("failed to write table to parquet: %w", err)
	}

	return nil
}

func parquetType(ds *Dataset, c int, positions []int) arrow.DataType {
	if ds.columns[c].Type != models.TypeNumeric {
		return arrow.BinaryTypes.String
	}
	for _, p := range positions {
		if c < len(ds.rows[p]) {
			if _, ok := ds.rows[p][c].(float64); ok {
				return arrow.PrimitiveTypes.Float64
			}
		}
	}
	return arrow.PrimitiveTypes.Int64
}

func buildArray(mem memory.Allocator, dt arrow.DataType, ds *Dataset, c int, positions []int) arrow.Array {
	cell := func(p int) any {
		if c < len(ds.rows[p]) {
			return ds.rows[p][c]
		}
		return nil
	}

	switch dt.ID() {
	case arrow.INT64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for _, p := range positions {
			if v, ok := cell(p).(int64); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case arrow.FLOAT64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, p := range positions {
			switch v := cell(p).(type) {
			case float64:
				b.Append(v)
			case int64:
				b.Append(float64(v))
			default:
				b.AppendNull()
			}
		}
		return b.NewArray()
	default:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, p := range positions {
			v := cell(p)
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(FormatValue(v))
		}
		return b.NewArray()
	}
}
