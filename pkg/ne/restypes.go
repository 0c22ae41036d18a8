package ne

import "strconv"

// Well-known resource type ids.
const (
	ResourceCursor       = 1
	ResourceBitmap       = 2
	ResourceIcon         = 3
	ResourceMenu         = 4
	ResourceDialog       = 5
	ResourceString       = 6
	ResourceFontDir      = 7
	ResourceFont         = 8
	ResourceAccelerator  = 9
	ResourceRCData       = 10
	ResourceMessageTable = 11
	ResourceGroupCursor  = 12
	ResourceGroupIcon    = 14
	ResourceNameTable    = 15
	ResourceVersion      = 16
	ResourceDlgInclude   = 17
	ResourcePlugPlay     = 19
	ResourceVXD          = 20
	ResourceAniCursor    = 21
	ResourceAniIcon      = 22
	ResourceHTML         = 23
	ResourceManifest     = 24
)

var resourceTypeNames = map[uint16]string{
	ResourceCursor:       "CURSOR",
	ResourceBitmap:       "BITMAP",
	ResourceIcon:         "ICON",
	ResourceMenu:         "MENU",
	ResourceDialog:       "DIALOG",
	ResourceString:       "STRING",
	ResourceFontDir:      "FONTDIR",
	ResourceFont:         "FONT",
	ResourceAccelerator:  "ACCELERATOR",
	ResourceRCData:       "RCDATA",
	ResourceMessageTable: "MESSAGETABLE",
	ResourceGroupCursor:  "GROUP_CURSOR",
	ResourceGroupIcon:    "GROUP_ICON",
	ResourceNameTable:    "NAMETABLE",
	ResourceVersion:      "VERSION",
	ResourceDlgInclude:   "DLGINCLUDE",
	ResourcePlugPlay:     "PLUGPLAY",
	ResourceVXD:          "VXD",
	ResourceAniCursor:    "ANICURSOR",
	ResourceAniIcon:      "ANIICON",
	ResourceHTML:         "HTML",
	ResourceManifest:     "MANIFEST",
}

// ResourceTypeName returns the canonical name of a numeric resource type,
// or false if id is not a well-known type.
func ResourceTypeName(id uint16) (string, bool) {
	name, ok := resourceTypeNames[id]
	return name, ok
}

// numericName is the name given to resources identified by number.
func numericName(id uint16) string {
	return "#" + strconv.Itoa(int(id))
}
