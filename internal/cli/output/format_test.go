package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/mtpd/internal/bytesize"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type transferLimits struct {
	MaxTransferSize bytesize.ByteSize `json:"max_transfer_size" yaml:"max_transfer_size"`
	Listen          string            `json:"listen" yaml:"listen"`
}

func TestPrintYAMLUsesTextForm(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, transferLimits{MaxTransferSize: 16 * bytesize.KiB, Listen: ":4242"}))
	assert.Contains(t, buf.String(), "max_transfer_size: 16KiB")

	var back transferLimits
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, 16*bytesize.KiB, back.MaxTransferSize)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int{"objects": 3}))
	assert.JSONEq(t, `{"objects": 3}`, buf.String())
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable)

	assert.Equal(t, FormatTable, printer.Format())
	assert.False(t, printer.color, "buffers are never colored")

	printer.Success("indexed")
	printer.Warning("storage is read-only")
	printer.Error("failed")
	assert.Equal(t, "indexed\nstorage is read-only\nfailed\n", buf.String())
}

func TestPrinterFormats(t *testing.T) {
	table := NewTableData("ID", "Path")
	table.AddRow("0x00010001", "/srv/mtp")

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable).Print(table))
	assert.Contains(t, buf.String(), "0x00010001")

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatJSON).Print(map[string]string{"path": "/srv/mtp"}))
	assert.JSONEq(t, `{"path": "/srv/mtp"}`, buf.String())

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatTable).Print(map[string]string{"path": "/srv/mtp"}))
	assert.Equal(t, "path: /srv/mtp\n", buf.String())

	assert.Error(t, NewPrinter(&buf, Format("xml")).Print(table))
}
