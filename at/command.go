package at

import "strconv"

// AppendQuoted appends s surrounded by double quotes, escaping '"' and '\'
// with a backslash.
func AppendQuoted(dst, s []byte) []byte {
	dst = append(dst, '"')
	for _, b := range s {
		if b == '"' || b == '\\' {
			dst = append(dst, '\\')
		}
		dst = append(dst, b)
	}
	return append(dst, '"')
}

// AppendUint appends the decimal form of v.
func AppendUint(dst []byte, v uint64) []byte {
	return strconv.AppendUint(dst, v, 10)
}

// JoinCommand builds AT+CWJAP_CUR="<ssid>","<password>".
func JoinCommand(ssid, password []byte) []byte {
	b := append([]byte(nil), cmdJoin...)
	b = AppendQuoted(b, ssid)
	b = append(b, ',')
	b = AppendQuoted(b, password)
	return append(b, CRLF...)
}

// StartCommand builds AT+CIPSTART=<link>,"<type>","<host>",<port>.
func StartCommand(link uint32, typ ConnectionType, host []byte, port uint16) []byte {
	b := append([]byte(nil), cmdStart...)
	b = AppendUint(b, uint64(link))
	b = append(b, ',')
	b = AppendQuoted(b, []byte(typ.String()))
	b = append(b, ',')
	b = AppendQuoted(b, host)
	b = append(b, ',')
	b = AppendUint(b, uint64(port))
	return append(b, CRLF...)
}

// SendCommand builds AT+CIPSEND=<link>,<length>.
func SendCommand(link uint32, length int) []byte {
	b := append([]byte(nil), cmdSend...)
	b = AppendUint(b, uint64(link))
	b = append(b, ',')
	b = AppendUint(b, uint64(length))
	return append(b, CRLF...)
}

// ServerCommand builds AT+CIPSERVER=1,<port>.
func ServerCommand(port uint16) []byte {
	b := append([]byte(nil), cmdServer...)
	b = AppendUint(b, uint64(port))
	return append(b, CRLF...)
}

// CloseCommand builds AT+CIPCLOSE=<link>.
func CloseCommand(link uint32) []byte {
	b := append([]byte(nil), cmdClose...)
	b = AppendUint(b, uint64(link))
	return append(b, CRLF...)
}
