package reflection_test

import "fmt"

func fmtMember(ptr uint64) string {
	return fmt.Sprintf("member_0x%X", ptr)
}

func fmtClass(ptr uint64) string {
	return fmt.Sprintf("Class_0x%X", ptr)
}
