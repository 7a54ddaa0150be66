package pixmeta

import "strconv"

// exifTypeNames gives the display name for each exifType, trimming the
// trailing byte-size digit carried by the constant identifiers themselves
// (exifTypeUnsignedByte1 -> "exifTypeUnsignedByte").
var exifTypeNames = map[exifType]string{
	exifTypeUnsignedByte1:  "exifTypeUnsignedByte",
	exifTypeASCIIString1:   "exifTypeASCIIString",
	exifTypeUnsignedShort2: "exifTypeUnsignedShort",
	exifTypeUnsignedLong4:  "exifTypeUnsignedLong",
	exifTypeUnsignedRat8:   "exifTypeUnsignedRat",
	exifTypeSignedByte1:    "exifTypeSignedByte",
	exifTypeUndef1:         "exifTypeUndef",
	exifTypeSignedShort2:   "exifTypeSignedShort",
	exifTypeSignedLong4:    "exifTypeSignedLong",
	exifTypeSignedRat8:     "exifTypeSignedRat",
	exifTypeSignedFloat4:   "exifTypeSignedFloat",
	exifTypeSignedDouble8:  "exifTypeSignedDouble",
}

func (e exifType) String() string {
	if name, ok := exifTypeNames[e]; ok {
		return name
	}
	return "exifType(" + strconv.FormatInt(int64(e), 10) + ")"
}
