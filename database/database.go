package database

type Database struct {
	store       *DocumentStore
	profileRepo *ProfileRepo
	projectRepo *ProjectRepo
}

// New initializes a new Database struct with each repository sharing one document store
func New(store *DocumentStore) Database {
	return Database{
		store:       store,
		profileRepo: NewProfileRepo(store),
		projectRepo: NewProjectRepo(store),
	}
}

func (d Database) Store() *DocumentStore {
	return d.store
}

func (d Database) ProfileRepo() *ProfileRepo {
	return d.profileRepo
}

func (d Database) ProjectRepo() *ProjectRepo {
	return d.projectRepo
}

func (d Database) Close() error {
	return d.store.Close()
}
