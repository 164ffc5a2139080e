package cli

import (
	"fmt"
	"io"
	"strings"
)

// HexDump writes a styled hex dump of data to w: 16 bytes per row with a
// dimmed offset column and an ASCII gutter. A nil Styles falls back to
// plain output.
func HexDump(w io.Writer, data []byte, st *Styles) error {
	const width = 16

	offset := func(s string) string { return s }
	gutter := func(s string) string { return s }
	if st != nil {
		offset = st.Help.Render
		gutter = st.Help.Render
	}

	for base := 0; base < len(data); base += width {
		row := data[base:min(base+width, len(data))]

		var hexCol strings.Builder
		for i := 0; i < width; i++ {
			if i == width/2 {
				hexCol.WriteByte(' ')
			}
			if i < len(row) {
				fmt.Fprintf(&hexCol, "%02x ", row[i])
			} else {
				hexCol.WriteString("   ")
			}
		}

		ascii := make([]byte, len(row))
		for i, c := range row {
			if c < 0x20 || c > 0x7e {
				c = '.'
			}
			ascii[i] = c
		}

		_, err := fmt.Fprintf(w, "%s  %s %s\n",
			offset(fmt.Sprintf("%08x", base)),
			hexCol.String(),
			gutter("|"+string(ascii)+"|"))
		if err != nil {
			return err
		}
	}
	return nil
}
