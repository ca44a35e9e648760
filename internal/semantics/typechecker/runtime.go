package typechecker

import (
	"pynux/internal/semantics/symbols"
	"pynux/internal/types"
)

// seedRuntime registers the fixed runtime ABI in the module scope so
// source can call the helpers without extern declarations. A source
// extern for one of these names simply restates the contract.
func seedRuntime(mod *symbols.Module) map[string]bool {
	i32 := types.TypeInt32
	u32 := types.TypeUint32
	str := types.TypeStr
	void := types.TypeVoid
	voidPtr := types.NewPointer(types.TypeVoid)

	sigs := []*symbols.FuncSig{
		{Name: "uart_init", Ret: void},
		{Name: "uart_putc", Params: []types.Type{i32}, Ret: void},
		{Name: "uart_getc", Ret: i32},
		{Name: "uart_available", Ret: i32},
		{Name: "print_str", Params: []types.Type{str}, Ret: void},
		{Name: "print_int", Params: []types.Type{i32}, Ret: void},
		{Name: "print_hex", Params: []types.Type{u32}, Ret: void},
		{Name: "print_newline", Ret: void},
		{Name: "malloc", Params: []types.Type{i32}, Ret: voidPtr},
		{Name: "free", Params: []types.Type{voidPtr}, Ret: void},
		{Name: "__pynux_strlen", Params: []types.Type{str}, Ret: i32},
		{Name: "__pynux_strcmp", Params: []types.Type{str, str}, Ret: i32},
		{Name: "__pynux_strcpy", Params: []types.Type{str, str}, Ret: str},
		{Name: "__pynux_strcat", Params: []types.Type{str, str}, Ret: str},
		{Name: "__pynux_memcpy", Params: []types.Type{voidPtr, voidPtr, i32}, Ret: voidPtr},
		{Name: "__pynux_memset", Params: []types.Type{voidPtr, i32, i32}, Ret: voidPtr},
		{Name: "__pynux_read_line", Params: []types.Type{str}, Ret: str},
	}

	seeded := make(map[string]bool, len(sigs))
	for _, sig := range sigs {
		sig.Extern = true
		mod.Funcs[sig.Name] = sig
		seeded[sig.Name] = true
	}
	return seeded
}
