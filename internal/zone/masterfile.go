package zone

import (
	"net"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/message"
	"github.com/mirelon/adnsd/internal/protocol"
)

// parseName validates field as a presentation-format domain name (spec.md
// §7's Malformed class: labels over 63 bytes, names over 255 bytes) before
// handing it to message.ParseName, so a master file with an oversized name
// fails zone load instead of producing a Name no encoder could later emit.
func parseName(field string) (message.Name, error) {
	if err := protocol.ValidateName(field); err != nil {
		return nil, &dnserrors.Zone{Operation: "parse master file name", Message: err.Error(), Err: err}
	}
	return message.ParseName(field), nil
}

// noneName is the master-file literal for a blank (root) owner name,
// preserving the original source's local convention (spec's Open
// Question #1, decided: preserved) so the column count of a line stays
// fixed even when the name field is empty.
const noneName = "NONE"

// parseMasterFile reads one master file (spec.md §4.9: space-separated
// fields, one RR per line: name, numeric TYPE, numeric CLASS, TTL, then
// per-type RDATA fields) and groups the resulting records by class. Every
// line is attempted even after an earlier one fails, so a single load
// reports every malformed line in the file at once; the zone is only
// installed by the caller if the returned error is nil.
func parseMasterFile(path, zoneName string) (map[protocol.Class][]message.ResourceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &dnserrors.Zone{Operation: "read master file", Zone: zoneName, Message: err.Error(), Err: err}
	}

	byClass := make(map[protocol.Class][]message.ResourceRecord)
	var errs error

	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		rr, class, err := parseMasterFileLine(line)
		if err != nil {
			errs = multierr.Append(errs, &dnserrors.Zone{
				Operation: "parse master file line", Zone: zoneName, Line: i + 1,
				Message: err.Error(), Err: err,
			})
			continue
		}
		byClass[class] = append(byClass[class], rr)
	}

	if errs != nil {
		return nil, errs
	}
	return byClass, nil
}

func parseMasterFileLine(line string) (message.ResourceRecord, protocol.Class, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return message.ResourceRecord{}, 0, &dnserrors.Zone{
			Operation: "parse master file line", Message: "need at least name, type, class, ttl",
		}
	}

	name := fields[0]
	if name == noneName {
		name = "."
	}

	typeNum, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return message.ResourceRecord{}, 0, &dnserrors.Zone{Operation: "parse master file line", Message: "invalid TYPE field", Err: err}
	}
	classNum, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return message.ResourceRecord{}, 0, &dnserrors.Zone{Operation: "parse master file line", Message: "invalid CLASS field", Err: err}
	}
	ttl, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return message.ResourceRecord{}, 0, &dnserrors.Zone{Operation: "parse master file line", Message: "invalid TTL field", Err: err}
	}

	rrType := protocol.Type(typeNum)
	class := protocol.Class(classNum)

	rdata, err := parseMasterFileRData(rrType, fields[4:])
	if err != nil {
		return message.ResourceRecord{}, 0, err
	}

	ownerName, err := parseName(name)
	if err != nil {
		return message.ResourceRecord{}, 0, err
	}

	return message.ResourceRecord{
		Name:  ownerName,
		Type:  rrType,
		Class: class,
		TTL:   uint32(ttl),
		RData: rdata,
	}, class, nil
}

func parseMasterFileRData(rrType protocol.Type, fields []string) (message.RData, error) {
	switch rrType {
	case protocol.TypeA:
		if len(fields) != 1 {
			return nil, &dnserrors.Zone{Operation: "parse A RDATA", Message: "want 1 field (dotted-decimal address)"}
		}
		ip := net.ParseIP(fields[0])
		if ip == nil {
			return nil, &dnserrors.Zone{Operation: "parse A RDATA", Message: "invalid IPv4 address " + fields[0]}
		}
		return message.NewARecord(ip)

	case protocol.TypeNS, protocol.TypeCNAME, protocol.TypeMB, protocol.TypeMD, protocol.TypeMF,
		protocol.TypeMG, protocol.TypeMR, protocol.TypePTR:
		if len(fields) != 1 {
			return nil, &dnserrors.Zone{Operation: "parse " + rrType.String() + " RDATA", Message: "want 1 field (domain name)"}
		}
		name, err := parseName(fields[0])
		if err != nil {
			return nil, err
		}
		return &message.DomainNameRData{RRType: rrType, Name: name}, nil

	case protocol.TypeSOA:
		if len(fields) != 7 {
			return nil, &dnserrors.Zone{Operation: "parse SOA RDATA", Message: "want 7 fields: mname rname serial refresh retry expire minimum"}
		}
		nums := make([]uint64, 5)
		for i, f := range fields[2:] {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, &dnserrors.Zone{Operation: "parse SOA RDATA", Message: "invalid numeric field " + f, Err: err}
			}
			nums[i] = n
		}
		mName, err := parseName(fields[0])
		if err != nil {
			return nil, err
		}
		rName, err := parseName(fields[1])
		if err != nil {
			return nil, err
		}
		return &message.SOARecord{
			MName:   mName,
			RName:   rName,
			Serial:  uint32(nums[0]),
			Refresh: uint32(nums[1]),
			Retry:   uint32(nums[2]),
			Expire:  uint32(nums[3]),
			Minimum: uint32(nums[4]),
		}, nil

	case protocol.TypeMX:
		if len(fields) != 2 {
			return nil, &dnserrors.Zone{Operation: "parse MX RDATA", Message: "want 2 fields: preference exchange"}
		}
		pref, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, &dnserrors.Zone{Operation: "parse MX RDATA", Message: "invalid preference", Err: err}
		}
		exchange, err := parseName(fields[1])
		if err != nil {
			return nil, err
		}
		return &message.MXRecord{Preference: uint16(pref), Exchange: exchange}, nil

	case protocol.TypeMINFO:
		if len(fields) != 2 {
			return nil, &dnserrors.Zone{Operation: "parse MINFO RDATA", Message: "want 2 fields: rmailbx emailbx"}
		}
		rMailBx, err := parseName(fields[0])
		if err != nil {
			return nil, err
		}
		eMailBx, err := parseName(fields[1])
		if err != nil {
			return nil, err
		}
		return &message.MINFORecord{RMailBx: rMailBx, EMailBx: eMailBx}, nil

	case protocol.TypeHINFO:
		if len(fields) != 2 {
			return nil, &dnserrors.Zone{Operation: "parse HINFO RDATA", Message: "want 2 quoted fields: cpu os"}
		}
		return &message.HINFORecord{CPU: stripQuotes(fields[0]), OS: stripQuotes(fields[1])}, nil

	case protocol.TypeTXT:
		if len(fields) == 0 {
			return nil, &dnserrors.Zone{Operation: "parse TXT RDATA", Message: "want at least 1 quoted field"}
		}
		texts := make([]string, len(fields))
		for i, f := range fields {
			texts[i] = stripQuotes(f)
		}
		return &message.TXTRecord{Texts: texts}, nil

	default:
		return nil, &dnserrors.Zone{Operation: "parse master file RDATA", Message: "unsupported TYPE " + rrType.String() + " in master file"}
	}
}

func stripQuotes(s string) string {
	return strings.Trim(s, `"`)
}
