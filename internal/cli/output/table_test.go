package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("ID", "Path", "Objects")

	assert.Equal(t, []string{"ID", "Path", "Objects"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("0x00010001", "/srv/mtp/internal", "12")
	table.AddRow("0x00020001", "/media/sdcard", "0")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"0x00020001", "/media/sdcard", "0"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Storage", "Free")
	table.AddRow("0x00010001", "1.2 GiB")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "STORAGE")
	assert.Contains(t, out, "FREE")
	assert.Contains(t, out, "0x00010001")
	assert.Contains(t, out, "1.2 GiB")
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, KeyValueTable(&buf, [][2]string{
		{"Transport", "device"},
		{"Database", "badger"},
	}))

	out := buf.String()
	assert.Contains(t, out, "Transport")
	assert.Contains(t, out, "device")
	assert.Contains(t, out, "badger")
}
