package vectortile

import (
	"fmt"
	"os"

	"github.com/tysonmote/gommap"
)

//MemFile 只读内存映射文件
type MemFile struct {
	File *os.File
	Map  gommap.MMap
	Len  int64
}

//MemFileOpen 打开内存文件
func MemFileOpen(path string) (*MemFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	mf := &MemFile{File: file, Len: st.Size()}
	// zero length files cannot be mapped
	if mf.Len == 0 {
		return mf, nil
	}
	mf.Map, err = gommap.Map(file.Fd(), gommap.PROT_READ, gommap.MAP_PRIVATE)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return mf, nil
}

//Close 关闭内存文件
func (mf *MemFile) Close() error {
	if mf.Map != nil {
		if err := mf.Map.UnsafeUnmap(); err != nil {
			return err
		}
		mf.Map = nil
	}
	return mf.File.Close()
}

//ReadTileFile 读取单个瓦片文件，返回的数据不依赖映射
func ReadTileFile(path string) ([]byte, error) {
	mf, err := MemFileOpen(path)
	if err != nil {
		return nil, err
	}
	defer mf.Close()
	data := make([]byte, len(mf.Map))
	copy(data, mf.Map)
	return data, nil
}
