package packet

import (
	"fmt"
	"strings"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/frame"
)

// CriterionUnset marks a numeric search criterion as not configured
const CriterionUnset = -255

// Criteria selects which decoded packets get search annotations. Numeric
// fields compare against the values extracted while decoding; Command is a
// case insensitive substring match against the command texts.
type Criteria struct {
	AccAddr   int
	DecAddr   int
	CV        int
	ByteValue int
	Command   string
}

// NewCriteria returns criteria with nothing set
func NewCriteria() Criteria {
	return Criteria{
		AccAddr:   CriterionUnset,
		DecAddr:   CriterionUnset,
		CV:        CriterionUnset,
		ByteValue: CriterionUnset,
	}
}

// applySearch emits search annotations for the packet just decoded. A byte
// criterion combined with an address criterion restricts byte hits to
// matching addresses; address and CV hits in turn require the byte to have
// been found when one is configured.
func (d *Decoder) applySearch(pkt []frame.ByteRecord) {
	byteFound := false
	for x := 0; x < len(pkt); x++ {
		if d.Search.ByteValue != int(pkt[x].Value) {
			continue
		}
		byteFound = true
		noAddr := d.Search.DecAddr < 0 && d.Search.AccAddr < 0 && d.Search.CV < 0
		if noAddr ||
			d.decAddr == d.Search.DecAddr ||
			d.accAddr == d.Search.AccAddr ||
			d.cvAddr == d.Search.CV {
			d.putByte(pkt, x, annotation.SearchByte,
				fmt.Sprintf("BYTE:%#x/%d", d.Search.ByteValue, d.Search.ByteValue))
		}
	}

	byteOK := d.Search.ByteValue < 0 || byteFound
	if d.Search.DecAddr == d.decAddr && byteOK {
		d.putBytes(pkt, 0, len(pkt)-2, annotation.SearchDecoder,
			fmt.Sprintf("DECODER:%d", d.Search.DecAddr))
	}
	if d.Search.AccAddr == d.accAddr && byteOK {
		d.putBytes(pkt, 0, len(pkt)-2, annotation.SearchAccessory,
			fmt.Sprintf("ACCESSORY:%d", d.Search.AccAddr))
	}
	if d.Search.CV == d.cvAddr && byteOK {
		d.putBytes(pkt, 0, len(pkt)-2, annotation.SearchCV,
			fmt.Sprintf("CV:%d", d.Search.CV))
	}

	if d.Search.Command != "" {
		needle := strings.ToLower(d.Search.Command)
		for _, label := range d.commandLabels {
			if strings.Contains(strings.ToLower(label), needle) {
				d.putBytes(pkt, 0, len(pkt)-2, annotation.SearchCommand, "COMMAND:"+d.Search.Command)
				break
			}
		}
	}
}
