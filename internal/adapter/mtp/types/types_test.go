package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	assert.Equal(t, "GetObject", OpGetObject.String())
	assert.Equal(t, "Operation(0x1234)", OperationCode(0x1234).String())
	assert.Equal(t, "PartialDeletion", RespPartialDeletion.String())
	assert.Equal(t, "Response(0x2999)", ResponseCode(0x2999).String())
	assert.Equal(t, "ObjectAdded", EventObjectAdded.String())
	assert.Equal(t, "Association", FormatAssociation.String())
	assert.Equal(t, "ObjectFileName", PropObjectFileName.String())
	assert.Equal(t, "DeviceFriendlyName", DevPropDeviceFriendlyName.String())
	assert.Equal(t, "data", ContainerData.String())
	assert.Equal(t, "container(0x0009)", ContainerType(9).String())
}

func TestDataType(t *testing.T) {
	assert.True(t, TypeArrayUint16.IsArray())
	assert.False(t, TypeString.IsArray())
	assert.False(t, TypeUint32.IsArray())
	assert.Equal(t, TypeUint16, TypeArrayUint16.Elem())
	assert.Equal(t, "AUINT16", TypeArrayUint16.String())

	assert.Equal(t, 1, TypeUint8.Size())
	assert.Equal(t, 8, TypeInt64.Size())
	assert.Equal(t, 16, TypeUint128.Size())
	assert.Equal(t, 0, TypeString.Size())

	assert.True(t, TypeInt32.IsSigned())
	assert.True(t, TypeArrayInt8.IsSigned())
	assert.False(t, TypeUint64.IsSigned())
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]ObjectFormat{
		"notes.txt":        FormatText,
		"/a/b/IMG_001.JPG": FormatEXIFJPEG,
		"song.flac":        FormatFLAC,
		"clip.mp4":         FormatMP4Container,
		"archive.tar.gz":   FormatUndefined,
		"README":           FormatUndefined,
	}
	for path, want := range tests {
		assert.Equal(t, want, FormatForPath(path), path)
	}
}

func TestPlaybackFormatsIncludeFolders(t *testing.T) {
	formats := PlaybackFormats()
	assert.Contains(t, formats, FormatAssociation)
	assert.Contains(t, formats, FormatText)
	assert.True(t, FormatAssociation.IsAssociation())
}
