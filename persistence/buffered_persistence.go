package persistence

import (
	"sync"

	"github.com/jrsteele09/go-pluggable-store/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrBufferClosed is returned by operations on a closed Buffer.
var ErrBufferClosed = errors.New("buffer closed")

type commandType int

const (
	writeCommand commandType = iota + 1
	deleteCommand
	readMetadataCommand
	readValueCommand
	flushCommand
)

type responseType struct {
	mv  *kvstore.ValueItem
	err error
}

type commandBuffer struct {
	cmdType  commandType
	key      string
	mv       *kvstore.ValueItem
	response chan responseType
}

// Buffer serialises access to a DataPersister through a single goroutine.
// Writes and deletes are queued and return immediately; reads wait behind queued writes,
// so a read always observes every write queued before it.
type Buffer struct {
	persistence kvstore.DataPersister
	cb          chan commandBuffer
	lock        sync.RWMutex
	closed      bool
	wg          sync.WaitGroup
}

// NewBuffer creates a new Buffer.
func NewBuffer(persistence kvstore.DataPersister, bufferSize uint) (*Buffer, error) {
	if persistence == nil {
		return nil, errors.New("persistence cannot be nil")
	}
	buffer := &Buffer{
		cb:          make(chan commandBuffer, bufferSize),
		persistence: persistence,
	}
	buffer.wg.Add(1)
	go buffer.commandBuffer()
	return buffer, nil
}

// Close drains queued commands and then closes the wrapped persister.
func (b *Buffer) Close() {
	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		return
	}
	b.closed = true
	close(b.cb)
	b.lock.Unlock()

	b.wg.Wait()
	b.persistence.Close()
}

// Write queues a write command.
func (b *Buffer) Write(key string, data *kvstore.ValueItem) error {
	return b.send(commandBuffer{cmdType: writeCommand, key: key, mv: data})
}

// Read queues a read command and waits for a response.
func (b *Buffer) Read(key string, readValue bool) (*kvstore.ValueItem, error) {
	cmd := readMetadataCommand
	if readValue {
		cmd = readValueCommand
	}

	r, err := b.request(commandBuffer{cmdType: cmd, key: key})
	if err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, errors.Wrap(r.err, "Buffer.Read")
	}
	return r.mv, nil
}

// Delete queues a delete command.
func (b *Buffer) Delete(key string) error {
	return b.send(commandBuffer{cmdType: deleteCommand, key: key})
}

// Keys retrieves keys from the persistence layer once queued commands have run.
func (b *Buffer) Keys() ([]string, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b.persistence.Keys()
}

// Flush waits until every command queued before it has been processed.
func (b *Buffer) Flush() error {
	_, err := b.request(commandBuffer{cmdType: flushCommand})
	return err
}

func (b *Buffer) send(command commandBuffer) error {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return ErrBufferClosed
	}
	b.cb <- command
	return nil
}

func (b *Buffer) request(command commandBuffer) (responseType, error) {
	command.response = make(chan responseType, 1)
	if err := b.send(command); err != nil {
		return responseType{}, err
	}
	return <-command.response, nil
}

// commandBuffer processes commands until the channel is closed.
func (b *Buffer) commandBuffer() {
	defer b.wg.Done()
	for command := range b.cb {
		b.processCommand(command)
	}
	log.Debug().Msg("Buffer.commandBuffer drained")
}

// processCommand processes an individual command.
func (b *Buffer) processCommand(command commandBuffer) {
	var err error
	switch command.cmdType {
	case writeCommand:
		err = b.persistence.Write(command.key, command.mv)
	case deleteCommand:
		err = b.persistence.Delete(command.key)
	case readMetadataCommand:
		mv, readErr := b.persistence.Read(command.key, false)
		command.response <- responseType{mv: mv, err: readErr}
	case readValueCommand:
		mv, readErr := b.persistence.Read(command.key, true)
		command.response <- responseType{mv: mv, err: readErr}
	case flushCommand:
		command.response <- responseType{}
	}

	if err != nil {
		log.Error().Str("key", command.key).Err(err).Msgf("Buffer.processCommand command: %d", command.cmdType)
	}
}
