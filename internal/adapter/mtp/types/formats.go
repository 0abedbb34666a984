package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ObjectFormat classifies an object's content.
type ObjectFormat uint16

const (
	FormatUndefined   ObjectFormat = 0x3000
	FormatAssociation ObjectFormat = 0x3001 // folder
	FormatScript      ObjectFormat = 0x3002
	FormatExecutable  ObjectFormat = 0x3003
	FormatText        ObjectFormat = 0x3004
	FormatHTML        ObjectFormat = 0x3005
	FormatDPOF        ObjectFormat = 0x3006
	FormatAIFF        ObjectFormat = 0x3007
	FormatWAV         ObjectFormat = 0x3008
	FormatMP3         ObjectFormat = 0x3009
	FormatAVI         ObjectFormat = 0x300A
	FormatMPEG        ObjectFormat = 0x300B
	FormatASF         ObjectFormat = 0x300C

	FormatUndefinedImage ObjectFormat = 0x3800
	FormatEXIFJPEG       ObjectFormat = 0x3801
	FormatTIFFEP         ObjectFormat = 0x3802
	FormatBMP            ObjectFormat = 0x3804
	FormatGIF            ObjectFormat = 0x3807
	FormatJFIF           ObjectFormat = 0x3808
	FormatPNG            ObjectFormat = 0x380B
	FormatTIFF           ObjectFormat = 0x380D
	FormatJP2            ObjectFormat = 0x380F

	FormatUndefinedFirmware ObjectFormat = 0xB802
	FormatUndefinedAudio    ObjectFormat = 0xB900
	FormatWMA               ObjectFormat = 0xB901
	FormatOGG               ObjectFormat = 0xB902
	FormatAAC               ObjectFormat = 0xB903
	FormatFLAC              ObjectFormat = 0xB906
	FormatUndefinedVideo    ObjectFormat = 0xB980
	FormatWMV               ObjectFormat = 0xB981
	FormatMP4Container      ObjectFormat = 0xB982
	Format3GPContainer      ObjectFormat = 0xB984
	FormatWPLPlaylist       ObjectFormat = 0xBA10
	FormatM3UPlaylist       ObjectFormat = 0xBA11
	FormatPLSPlaylist       ObjectFormat = 0xBA14
	FormatXMLDocument       ObjectFormat = 0xBA82
)

var formatNames = map[ObjectFormat]string{
	FormatUndefined:         "Undefined",
	FormatAssociation:       "Association",
	FormatScript:            "Script",
	FormatExecutable:        "Executable",
	FormatText:              "Text",
	FormatHTML:              "HTML",
	FormatDPOF:              "DPOF",
	FormatAIFF:              "AIFF",
	FormatWAV:               "WAV",
	FormatMP3:               "MP3",
	FormatAVI:               "AVI",
	FormatMPEG:              "MPEG",
	FormatASF:               "ASF",
	FormatUndefinedImage:    "UndefinedImage",
	FormatEXIFJPEG:          "EXIF_JPEG",
	FormatTIFFEP:            "TIFF_EP",
	FormatBMP:               "BMP",
	FormatGIF:               "GIF",
	FormatJFIF:              "JFIF",
	FormatPNG:               "PNG",
	FormatTIFF:              "TIFF",
	FormatJP2:               "JP2",
	FormatUndefinedFirmware: "UndefinedFirmware",
	FormatUndefinedAudio:    "UndefinedAudio",
	FormatWMA:               "WMA",
	FormatOGG:               "OGG",
	FormatAAC:               "AAC",
	FormatFLAC:              "FLAC",
	FormatUndefinedVideo:    "UndefinedVideo",
	FormatWMV:               "WMV",
	FormatMP4Container:      "MP4",
	Format3GPContainer:      "3GP",
	FormatWPLPlaylist:       "WPLPlaylist",
	FormatM3UPlaylist:       "M3UPlaylist",
	FormatPLSPlaylist:       "PLSPlaylist",
	FormatXMLDocument:       "XMLDocument",
}

func (f ObjectFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(0x%04X)", uint16(f))
}

// IsAssociation reports whether f denotes a folder.
func (f ObjectFormat) IsAssociation() bool {
	return f == FormatAssociation
}

// PlaybackFormats lists the formats advertised in DeviceInfo, in order.
func PlaybackFormats() []ObjectFormat {
	return []ObjectFormat{
		FormatUndefined, FormatAssociation, FormatText, FormatHTML,
		FormatWAV, FormatMP3, FormatMPEG, FormatAVI, FormatASF,
		FormatEXIFJPEG, FormatTIFFEP, FormatBMP, FormatGIF, FormatJFIF,
		FormatPNG, FormatTIFF, FormatWMA, FormatOGG, FormatAAC, FormatFLAC,
		FormatWMV, FormatMP4Container, Format3GPContainer,
		FormatWPLPlaylist, FormatM3UPlaylist, FormatPLSPlaylist,
		FormatXMLDocument,
	}
}

var extensionFormats = map[string]ObjectFormat{
	".txt":  FormatText,
	".log":  FormatText,
	".csv":  FormatText,
	".htm":  FormatHTML,
	".html": FormatHTML,
	".sh":   FormatScript,
	".exe":  FormatExecutable,
	".wav":  FormatWAV,
	".aif":  FormatAIFF,
	".aiff": FormatAIFF,
	".mp3":  FormatMP3,
	".avi":  FormatAVI,
	".mpg":  FormatMPEG,
	".mpeg": FormatMPEG,
	".asf":  FormatASF,
	".jpg":  FormatEXIFJPEG,
	".jpeg": FormatEXIFJPEG,
	".bmp":  FormatBMP,
	".gif":  FormatGIF,
	".png":  FormatPNG,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".jp2":  FormatJP2,
	".wma":  FormatWMA,
	".ogg":  FormatOGG,
	".oga":  FormatOGG,
	".aac":  FormatAAC,
	".m4a":  FormatAAC,
	".flac": FormatFLAC,
	".wmv":  FormatWMV,
	".mp4":  FormatMP4Container,
	".m4v":  FormatMP4Container,
	".3gp":  Format3GPContainer,
	".wpl":  FormatWPLPlaylist,
	".m3u":  FormatM3UPlaylist,
	".pls":  FormatPLSPlaylist,
	".xml":  FormatXMLDocument,
}

// FormatForPath guesses the format of a regular file from its extension.
// Unknown extensions map to FormatUndefined.
func FormatForPath(path string) ObjectFormat {
	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return FormatUndefined
}

// AssociationGenericFolder is the AssociationType of a plain folder.
const AssociationGenericFolder uint16 = 0x0001
