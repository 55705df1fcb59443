// Package table реализует плоскую таблицу телеметрии, хранимую в CSV файле
// Таблица читается целиком, дополняется колонками и записывается целиком
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrSchema обязательная колонка отсутствует во входной таблице
	ErrSchema = errors.New("schema error")
	// ErrParse таблица или ячейка не разбирается
	ErrParse = errors.New("parse error")
	// ErrInvalidRow значение признака не конечно или вне допустимого диапазона
	ErrInvalidRow = errors.New("invalid row")
)

// Column колонка для записи в таблицу
type Column struct {
	Name   string
	Values []string
}

// Table таблица с заголовком и строками одинаковой ширины
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// New создает пустую таблицу с заданным заголовком
func New(header []string) *Table {
	t := &Table{index: make(map[string]int, len(header))}
	for _, name := range header {
		t.addColumn(name)
	}
	return t
}

// Read разбирает CSV. Строки короче заголовка дополняются пустыми ячейками:
// сборщик дописывает шесть входных колонок под более широкий заголовок
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrParse, err)
	}

	t := New(nil)
	for _, name := range header {
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrParse, name)
		}
		t.addColumn(name)
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if len(record) > len(t.header) {
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrParse, line, len(record), len(t.header))
		}
		row := make([]string, len(t.header))
		copy(row, record)
		t.rows = append(t.rows, row)
	}

	return t, nil
}

// ReadFile читает таблицу из файла
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Write сериализует таблицу в CSV
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if len(t.header) > 0 {
		if err := writer.Write(t.header); err != nil {
			return err
		}
	}
	if err := writer.WriteAll(t.rows); err != nil {
		return err
	}
	return writer.Error()
}

// WriteFile атомарно заменяет файл: запись во временный файл рядом и rename
func (t *Table) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := t.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write table: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Len возвращает количество строк
func (t *Table) Len() int {
	return len(t.rows)
}

// Header возвращает копию заголовка
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Has проверяет наличие колонки
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Missing возвращает отсутствующие колонки из списка
func (t *Table) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Cell возвращает ячейку; false если колонки нет
func (t *Table) Cell(row int, name string) (string, bool) {
	i, ok := t.index[name]
	if !ok {
		return "", false
	}
	return t.rows[row][i], true
}

// Column возвращает копию значений колонки
func (t *Table) Column(name string) ([]string, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	values := make([]string, len(t.rows))
	for r, row := range t.rows {
		values[r] = row[i]
	}
	return values, true
}

// AppendRow добавляет строку; ячейки сопоставляются с заголовком по имени
func (t *Table) AppendRow(cells map[string]string) {
	row := make([]string, len(t.header))
	for name, value := range cells {
		if i, ok := t.index[name]; ok {
			row[i] = value
		}
	}
	t.rows = append(t.rows, row)
}

// Apply записывает набор колонок целиком или не записывает ничего.
// Существующие колонки перезаписываются на месте, новые добавляются справа
func (t *Table) Apply(cols ...Column) error {
	for _, c := range cols {
		if len(c.Values) != len(t.rows) {
			return fmt.Errorf("column %q has %d values, table has %d rows",
				c.Name, len(c.Values), len(t.rows))
		}
	}

	for _, c := range cols {
		i, ok := t.index[c.Name]
		if !ok {
			i = t.addColumn(c.Name)
			for r := range t.rows {
				t.rows[r] = append(t.rows[r], "")
			}
		}
		for r, v := range c.Values {
			t.rows[r][i] = v
		}
	}
	return nil
}

// Clone возвращает глубокую копию таблицы
func (t *Table) Clone() *Table {
	c := New(t.header)
	c.rows = make([][]string, len(t.rows))
	for r, row := range t.rows {
		c.rows[r] = append([]string(nil), row...)
	}
	return c
}

func (t *Table) addColumn(name string) int {
	t.header = append(t.header, name)
	t.index[name] = len(t.header) - 1
	return len(t.header) - 1
}
